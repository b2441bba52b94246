package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"currency-ledger/internal/emitter"
	"currency-ledger/internal/event"
	"currency-ledger/internal/pkg/monitor"
	"currency-ledger/internal/token"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"
)

const callerHeader = "X-Caller-Principal"

// TokenServer 事件源服务的对外 HTTP 接口：账本操作 + 订阅管理。
// 调用方身份从 X-Caller-Principal 请求头解析，网关负责鉴权后注入。
type TokenServer struct {
	port     int
	server   *http.Server
	token    *token.CurrencyToken
	registry *emitter.Registry
	emitter  *emitter.Emitter

	// mu 串行化"账本提交 + 事件入队"。两者各有自己的锁，
	// 不加这层锁时并发请求可能在提交与入队之间交错，
	// 事件序号顺序就会偏离提交顺序，镜像重放会看到因果倒置的历史。
	mu sync.Mutex
}

func NewTokenServer(port int, tok *token.CurrencyToken, registry *emitter.Registry, em *emitter.Emitter) *TokenServer {
	s := &TokenServer{
		port:     port,
		token:    tok,
		registry: registry,
		emitter:  em,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mint", s.handleMint)
	mux.HandleFunc("/transfer", s.handleTransfer)
	mux.HandleFunc("/burn", s.handleBurn)
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	mux.HandleFunc("/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("/balance_of", s.handleBalanceOf)
	mux.HandleFunc("/total_supply", s.handleTotalSupply)
	mux.HandleFunc("/info", s.handleInfo)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: mux,
	}
	return s
}

// Handler 暴露路由，测试用
func (s *TokenServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *TokenServer) Start() {
	logger.Infof("[TokenServer] starting on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("账本服务启动失败: %v", err)
		panic(err)
	}
}

func (s *TokenServer) Stop() {
	logger.Infof("[TokenServer] shutting down")
	_ = s.server.Shutdown(context.Background())
}

// ==================== 账本操作 ====================

type mintRequest struct {
	To     types.Principal `json:"to"`
	Amount uint64          `json:"amount"`
}

func (s *TokenServer) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.token.GuardController(caller); err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	err := s.token.Mint(req.To, req.Amount)
	if err == nil {
		s.emit(event.NewMint(req.To, req.Amount, nowNs()))
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.token.BalanceOf(req.To)})
}

type transferRequest struct {
	To     types.Principal `json:"to"`
	Amount uint64          `json:"amount"`
}

func (s *TokenServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.token.Transfer(caller, req.To, req.Amount)
	if err == nil {
		// 自转账余额不变，但事件照常发出
		s.emit(event.NewTransfer(caller, req.To, req.Amount, nowNs()))
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.token.BalanceOf(caller)})
}

type burnRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *TokenServer) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req burnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.token.Burn(caller, req.Amount)
	if err == nil {
		s.emit(event.NewBurn(caller, req.Amount, nowNs()))
	}
	s.mu.Unlock()

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.token.BalanceOf(caller)})
}

// ==================== 订阅管理 ====================

type subscribeRequest struct {
	Callbacks []emitter.CallbackInfo `json:"callbacks"`
}

func (s *TokenServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.registry.Subscribe(caller, req.Callbacks); err != nil {
		writeError(w, err)
		return
	}
	logger.Infof("订阅登记成功, subscriber=%s, callbacks=%d", caller, len(req.Callbacks))
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}

func (s *TokenServer) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	if err := s.registry.Unsubscribe(caller); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// ==================== 查询 ====================

func (s *TokenServer) handleBalanceOf(w http.ResponseWriter, r *http.Request) {
	owner, err := types.TryPrincipalFromBase58(r.URL.Query().Get("owner"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BadRequest", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.token.BalanceOf(owner)})
}

func (s *TokenServer) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"total_supply": s.token.TotalSupply()})
}

func (s *TokenServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.token.Info())
}

// ==================== 辅助 ====================

// emit 账本状态已变更，事件进入发射缓冲。编码失败意味着事件构造 bug，
// 只能记录告警，不回滚已生效的账本操作。
func (s *TokenServer) emit(ev event.Event) {
	if err := s.emitter.Emit(ev); err != nil {
		logger.Errorf("事件入队失败, kind=%s, err=%v", ev.Kind, err)
		return
	}
	monitor.EventsEmitted.WithLabelValues(ev.Kind.String()).Inc()
}

func (s *TokenServer) requireCaller(w http.ResponseWriter, r *http.Request) (types.Principal, bool) {
	caller, err := types.TryPrincipalFromBase58(r.Header.Get(callerHeader))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody("Unauthorized", "missing or invalid "+callerHeader))
		return types.Principal{}, false
	}
	return caller, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("BadRequest", "POST required"))
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("BadRequest", err.Error()))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	code := token.CodeOf(err)
	monitor.OperationsRejected.WithLabelValues(code).Inc()

	status := http.StatusBadRequest
	switch code {
	case "AccessDenied":
		status = http.StatusForbidden
	case "Internal":
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody(code, err.Error()))
}

func errorBody(code, message string) map[string]string {
	return map[string]string{"code": code, "message": message}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func nowNs() uint64 {
	return uint64(time.Now().UnixNano())
}
