package event

import "currency-ledger/internal/types"

// Kind 是领域事件的封闭类别标签，同时作为线上编码的 4 字节前缀。
// KindAny 仅在过滤器中出现，事件本身永远不会携带它。
type Kind uint32

const (
	KindAny      Kind = 0
	KindMint     Kind = 1
	KindTransfer Kind = 2
	KindBurn     Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "Any"
	case KindMint:
		return "Mint"
	case KindTransfer:
		return "Transfer"
	case KindBurn:
		return "Burn"
	default:
		return "Unknown"
	}
}

// Event 表示一次已提交的账本状态变更，创建后不可变。
// Seq 由发射端按产生顺序单调分配，消费端用它做去重与排序核对。
type Event struct {
	Kind      Kind            `json:"kind"`
	Seq       uint64          `json:"seq"`
	From      types.Principal `json:"from,omitempty"` // Transfer / Burn
	To        types.Principal `json:"to,omitempty"`   // Mint / Transfer
	Amount    uint64          `json:"amount"`
	Timestamp uint64          `json:"timestamp"` // 纳秒
}

func NewMint(to types.Principal, amount, timestamp uint64) Event {
	return Event{Kind: KindMint, To: to, Amount: amount, Timestamp: timestamp}
}

func NewTransfer(from, to types.Principal, amount, timestamp uint64) Event {
	return Event{Kind: KindTransfer, From: from, To: to, Amount: amount, Timestamp: timestamp}
}

func NewBurn(from types.Principal, amount, timestamp uint64) Event {
	return Event{Kind: KindBurn, From: from, Amount: amount, Timestamp: timestamp}
}
