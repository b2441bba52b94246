package service

import (
	"context"
	"time"

	"currency-ledger/internal/emitter"
)

const defaultFlushInterval = time.Second

// FlushService 发射端心跳：周期性驱动 Emitter 判断阈值并投递出站队列。
// 心跳间隔应明显小于 linger，否则 linger 的实际精度由心跳决定。
type FlushService struct {
	emitter  *emitter.Emitter
	interval time.Duration
	stopChan chan struct{}
}

func NewFlushService(em *emitter.Emitter, interval time.Duration) *FlushService {
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	return &FlushService{
		emitter:  em,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (fs *FlushService) Start() {
	ticker := time.NewTicker(fs.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			fs.emitter.Flush(context.Background(), now)
		case <-fs.stopChan:
			// 退出前无视阈值清空积压，未达 linger 的事件也不能丢
			fs.emitter.Drain(context.Background())
			return
		}
	}
}

func (fs *FlushService) Stop() {
	close(fs.stopChan)
}
