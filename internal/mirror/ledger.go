package mirror

import (
	"fmt"
	"sync"

	"currency-ledger/internal/event"
	"currency-ledger/internal/token"
	"currency-ledger/internal/types"
)

// State 镜像账本生命周期状态
type State uint8

const (
	// StateUninitialized 尚未绑定事件源，拒绝一切摄入
	StateUninitialized State = iota
	// StateAwaitingSubscription 已绑定事件源，等待订阅握手完成
	StateAwaitingSubscription
	// StateSubscribed 订阅生效，正常接收事件
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAwaitingSubscription:
		return "AwaitingSubscription"
	case StateSubscribed:
		return "Subscribed"
	default:
		return "Unknown"
	}
}

// Ledger 镜像侧账本：绑定唯一事件源，将其事件按到达顺序落入只追加日志。
// 日志一旦写入不再修改、不再删除，消费方通过 Events 分页读取。
type Ledger struct {
	mu      sync.Mutex
	state   State
	source  types.Principal
	entries []event.Event
}

func NewLedger() *Ledger {
	return &Ledger{state: StateUninitialized}
}

// Init 绑定事件源并进入等待订阅状态。重复初始化是部署错误，直接拒绝。
func (l *Ledger) Init(source types.Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateUninitialized {
		return fmt.Errorf("ledger already initialized (state=%s): %w", l.state, token.ErrForbiddenOperation)
	}
	if source.IsZero() {
		return fmt.Errorf("zero source principal: %w", token.ErrForbiddenOperation)
	}
	l.source = source
	l.state = StateAwaitingSubscription
	return nil
}

// MarkSubscribed 订阅握手成功后由恢复流程调用
func (l *Ledger) MarkSubscribed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateAwaitingSubscription {
		l.state = StateSubscribed
	}
}

// AwaitResubscription 重启/升级后订阅关系视为失效，回到等待订阅状态。
// 摄入不因此暂停：在途事件仍可能到达，照常入账。
func (l *Ledger) AwaitResubscription() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateSubscribed {
		l.state = StateAwaitingSubscription
	}
}

func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Source 返回绑定的事件源；未初始化时返回零值
func (l *Ledger) Source() types.Principal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// Append 追加一条事件。调用方（摄入层）负责来源校验与去重。
func (l *Ledger) Append(ev event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ev)
}

// Events 分页读取日志，offset 越界返回空切片
func (l *Ledger) Events(offset, limit int) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset < 0 || offset >= len(l.entries) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(l.entries) {
		end = len(l.entries)
	}
	return append([]event.Event(nil), l.entries[offset:end]...)
}

// Len 返回日志长度
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
