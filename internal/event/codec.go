package event

import (
	"encoding/binary"
	"errors"
	"fmt"

	"currency-ledger/internal/types"

	"github.com/near/borsh-go"
)

// ErrUnknownKind 表示事件声明的类别标签不在已知集合内，属于协议违规
var ErrUnknownKind = errors.New("unknown event kind")

const (
	kindPrefixLen   = 4
	envelopeVersion = 1
)

// 各事件类别的线上载荷，字段顺序即 borsh 编码顺序，不可调整
type mintWire struct {
	Seq       uint64
	To        types.Principal
	Amount    uint64
	Timestamp uint64
}

type transferWire struct {
	Seq       uint64
	From      types.Principal
	To        types.Principal
	Amount    uint64
	Timestamp uint64
}

type burnWire struct {
	Seq       uint64
	From      types.Principal
	Amount    uint64
	Timestamp uint64
}

// Encode 将事件编码为带类别前缀的二进制数据：
// - 前 4 字节为事件类别（uint32，小端序）
// - 后续为 borsh 序列化的载荷
func Encode(ev Event) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch ev.Kind {
	case KindMint:
		body, err = borsh.Serialize(mintWire{Seq: ev.Seq, To: ev.To, Amount: ev.Amount, Timestamp: ev.Timestamp})
	case KindTransfer:
		body, err = borsh.Serialize(transferWire{Seq: ev.Seq, From: ev.From, To: ev.To, Amount: ev.Amount, Timestamp: ev.Timestamp})
	case KindBurn:
		body, err = borsh.Serialize(burnWire{Seq: ev.Seq, From: ev.From, Amount: ev.Amount, Timestamp: ev.Timestamp})
	default:
		return nil, fmt.Errorf("encode event kind=%d: %w", ev.Kind, ErrUnknownKind)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}

	buf := make([]byte, kindPrefixLen, kindPrefixLen+len(body))
	binary.LittleEndian.PutUint32(buf[:kindPrefixLen], uint32(ev.Kind))
	return append(buf, body...), nil
}

// Decode 按声明的类别标签解码事件。未知标签返回 ErrUnknownKind，
// 摄入端必须将其视为致命协议违规并中止整批处理。
func Decode(data []byte) (Event, error) {
	if len(data) < kindPrefixLen {
		return Event{}, fmt.Errorf("event too short: %d bytes", len(data))
	}
	kind := Kind(binary.LittleEndian.Uint32(data[:kindPrefixLen]))
	body := data[kindPrefixLen:]

	switch kind {
	case KindMint:
		var w mintWire
		if err := borsh.Deserialize(&w, body); err != nil {
			return Event{}, fmt.Errorf("decode mint event: %w", err)
		}
		return Event{Kind: KindMint, Seq: w.Seq, To: w.To, Amount: w.Amount, Timestamp: w.Timestamp}, nil
	case KindTransfer:
		var w transferWire
		if err := borsh.Deserialize(&w, body); err != nil {
			return Event{}, fmt.Errorf("decode transfer event: %w", err)
		}
		return Event{Kind: KindTransfer, Seq: w.Seq, From: w.From, To: w.To, Amount: w.Amount, Timestamp: w.Timestamp}, nil
	case KindBurn:
		var w burnWire
		if err := borsh.Deserialize(&w, body); err != nil {
			return Event{}, fmt.Errorf("decode burn event: %w", err)
		}
		return Event{Kind: KindBurn, Seq: w.Seq, From: w.From, Amount: w.Amount, Timestamp: w.Timestamp}, nil
	default:
		return Event{}, fmt.Errorf("decode event kind=%d: %w", kind, ErrUnknownKind)
	}
}

// Envelope 是一次批量投递的传输单元：来源身份 + 按产生顺序排列的已编码事件
type Envelope struct {
	Version uint32
	Source  types.Principal
	Events  [][]byte
}

func EncodeEnvelope(source types.Principal, events [][]byte) ([]byte, error) {
	data, err := borsh.Serialize(Envelope{
		Version: envelopeVersion,
		Source:  source,
		Events:  events,
	})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := borsh.Deserialize(&env, data); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return Envelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return env, nil
}
