package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"currency-ledger/internal/cron"
	"currency-ledger/internal/emitter"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"
)

// SubscribeClient 向事件源发起订阅握手
type SubscribeClient interface {
	Subscribe(ctx context.Context, callbacks []emitter.CallbackInfo) error
}

// Recovery 订阅恢复流程：进程重启/升级后订阅关系视为失效，
// 通过一次性延迟任务重新发起握手。握手失败只记录日志，不自动重试，
// 由运维根据告警人工介入。
type Recovery struct {
	sched     *cron.Scheduler
	client    SubscribeClient
	ledger    *Ledger
	callbacks []emitter.CallbackInfo
}

func NewRecovery(sched *cron.Scheduler, client SubscribeClient, ledger *Ledger, callbacks []emitter.CallbackInfo) *Recovery {
	return &Recovery{
		sched:     sched,
		client:    client,
		ledger:    ledger,
		callbacks: callbacks,
	}
}

// ScheduleResubscription 入队一个立即到期的一次性重订阅任务。
// 账本处于 Subscribed 状态时先回退到等待订阅，保证状态与实际一致。
func (r *Recovery) ScheduleResubscription() uint64 {
	r.ledger.AwaitResubscription()
	return r.sched.Enqueue(r.ledger.Source(), cron.SchedulingOptions{
		Delay:      0,
		Iterations: 1,
	})
}

// Tick 心跳入口：取出到期任务并逐个执行订阅握手。
// 一次性任务取出即消费，失败不会再次出现。
func (r *Recovery) Tick(ctx context.Context, now time.Time) {
	for _, task := range r.sched.ReadyTasks(now) {
		source, ok := task.Payload.(types.Principal)
		if !ok {
			logger.Errorf("重订阅任务载荷类型非法, task=%d, payload=%T", task.ID, task.Payload)
			continue
		}

		if err := r.client.Subscribe(ctx, r.callbacks); err != nil {
			logger.Errorf("重订阅握手失败, task=%d, source=%s, err=%v", task.ID, source, err)
			continue
		}
		r.ledger.MarkSubscribed()
		logger.Infof("重订阅握手成功, task=%d, source=%s, callbacks=%d",
			task.ID, source, len(r.callbacks))
	}
}

const defaultSubscribeTimeout = 10 * time.Second

// HTTPSubscribeClient 通过事件源的 HTTP 接口完成订阅握手
type HTTPSubscribeClient struct {
	endpoint string
	self     types.Principal
	client   *http.Client
}

// NewHTTPSubscribeClient endpoint 为事件源服务地址（如 http://token:8080），
// self 为镜像自身的身份，作为订阅方标识随请求发送。
func NewHTTPSubscribeClient(endpoint string, self types.Principal) *HTTPSubscribeClient {
	return &HTTPSubscribeClient{
		endpoint: endpoint,
		self:     self,
		client:   &http.Client{Timeout: defaultSubscribeTimeout},
	}
}

func (c *HTTPSubscribeClient) Subscribe(ctx context.Context, callbacks []emitter.CallbackInfo) error {
	body, err := json.Marshal(map[string]interface{}{
		"callbacks": callbacks,
	})
	if err != nil {
		return fmt.Errorf("marshal subscribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/subscribe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Principal", c.self.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("subscribe rejected: status=%d, body=%s", resp.StatusCode, msg)
	}
	return nil
}
