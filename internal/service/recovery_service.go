package service

import (
	"context"
	"time"

	"currency-ledger/internal/mirror"
)

const defaultRecoveryTick = time.Second

// RecoveryService 镜像侧恢复心跳：启动时登记一次性重订阅任务，
// 之后周期性驱动调度器执行到期任务。
type RecoveryService struct {
	recovery *mirror.Recovery
	interval time.Duration
	stopChan chan struct{}
}

func NewRecoveryService(rec *mirror.Recovery, interval time.Duration) *RecoveryService {
	if interval <= 0 {
		interval = defaultRecoveryTick
	}
	return &RecoveryService{
		recovery: rec,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (rs *RecoveryService) Start() {
	// 进程刚启动，上游的订阅关系视为失效，立即安排一次握手
	rs.recovery.ScheduleResubscription()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rs.recovery.Tick(context.Background(), now)
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RecoveryService) Stop() {
	close(rs.stopChan)
}
