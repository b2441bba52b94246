package emitter

import (
	"fmt"
	"sort"
	"sync"

	"currency-ledger/internal/event"
	"currency-ledger/internal/token"
	"currency-ledger/internal/types"
)

// CallbackInfo 一条订阅回调：过滤器 + 投递目标（订阅方声明的回调 topic）
type CallbackInfo struct {
	Filter event.Filter `json:"filter"`
	Method string       `json:"method"`
}

// Subscription 某个订阅方注册的完整回调集合
type Subscription struct {
	Subscriber types.Principal
	Callbacks  []CallbackInfo
}

// Registry 维护订阅方与其主题过滤器。
// 没有自动剔除策略：订阅方只能通过显式 Unsubscribe 离开，
// 持续投递失败的订阅方由运维介入处理。
type Registry struct {
	mu   sync.Mutex
	subs map[types.Principal][]CallbackInfo
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[types.Principal][]CallbackInfo)}
}

// Subscribe 注册或整体替换订阅方的回调集合，幂等
func (r *Registry) Subscribe(subscriber types.Principal, callbacks []CallbackInfo) error {
	if len(callbacks) == 0 {
		return fmt.Errorf("empty callback list: %w", token.ErrForbiddenOperation)
	}
	for _, cb := range callbacks {
		if cb.Method == "" {
			return fmt.Errorf("callback with empty method: %w", token.ErrForbiddenOperation)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[subscriber] = append([]CallbackInfo(nil), callbacks...)
	return nil
}

// Unsubscribe 移除订阅方；不存在时不视为错误
func (r *Registry) Unsubscribe(subscriber types.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, subscriber)
	return nil
}

// Snapshot 返回当前订阅集合的拷贝，按订阅方标识排序保证遍历顺序稳定
func (r *Registry) Snapshot() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscription, 0, len(r.subs))
	for sub, cbs := range r.subs {
		out = append(out, Subscription{
			Subscriber: sub,
			Callbacks:  append([]CallbackInfo(nil), cbs...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Subscriber.String() < out[j].Subscriber.String()
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
