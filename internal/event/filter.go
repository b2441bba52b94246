package event

import "currency-ledger/internal/types"

// Filter 是订阅方注册的主题过滤器。
// Kind 为 KindAny 时匹配全部类别；From/To 为 nil 表示不约束该字段，
// 非 nil 时要求与事件对应字段完全相等。多个约束之间是与关系；
// 需要"或"语义的订阅方注册多条过滤器（参照 transfer 的 from/to 追踪）。
type Filter struct {
	Kind Kind             `json:"kind"`
	From *types.Principal `json:"from,omitempty"`
	To   *types.Principal `json:"to,omitempty"`
}

// Matches 判断事件是否命中过滤器
func (f Filter) Matches(ev Event) bool {
	if f.Kind != KindAny && f.Kind != ev.Kind {
		return false
	}
	if f.From != nil && !f.From.Equals(ev.From) {
		return false
	}
	if f.To != nil && !f.To.Equals(ev.To) {
		return false
	}
	return true
}
