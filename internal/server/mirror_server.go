package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"currency-ledger/internal/event"
	"currency-ledger/internal/mirror"
	"currency-ledger/pkg/logger"
)

const defaultEventsPageSize = 100

// MirrorServer 镜像服务的只读查询接口
type MirrorServer struct {
	port   int
	server *http.Server
	ledger *mirror.Ledger
}

func NewMirrorServer(port int, ledger *mirror.Ledger) *MirrorServer {
	s := &MirrorServer{port: port, ledger: ledger}

	mux := http.NewServeMux()
	mux.HandleFunc("/get_events", s.handleGetEvents)
	mux.HandleFunc("/state", s.handleState)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: mux,
	}
	return s
}

// Handler 暴露路由，测试用
func (s *MirrorServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *MirrorServer) Start() {
	logger.Infof("[MirrorServer] starting on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("镜像服务启动失败: %v", err)
		panic(err)
	}
}

func (s *MirrorServer) Stop() {
	logger.Infof("[MirrorServer] shutting down")
	_ = s.server.Shutdown(context.Background())
}

type getEventsResponse struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Events []event.Event `json:"events"`
}

func (s *MirrorServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultEventsPageSize)

	writeJSON(w, http.StatusOK, getEventsResponse{
		Total:  s.ledger.Len(),
		Offset: offset,
		Events: s.ledger.Events(offset, limit),
	})
}

func (s *MirrorServer) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"state":  s.ledger.State().String(),
		"source": s.ledger.Source().String(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
