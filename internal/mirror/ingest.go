package mirror

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/internal/dedup"
	"currency-ledger/internal/event"
	"currency-ledger/internal/token"
	"currency-ledger/pkg/logger"
)

var (
	// ErrBadEnvelope 信封本身无法解析，属于协议违规
	ErrBadEnvelope = errors.New("malformed event envelope")
	// ErrUnexpectedKind 事件类别与回调声明不符（比如 mint 回调收到 transfer）
	ErrUnexpectedKind = errors.New("event kind does not match callback")
)

// Ingestor 镜像侧事件摄入：来源校验 -> 整批解码 -> 逐条去重入账。
// 整批解码先行：批内任何一条事件非法则整批拒绝，保证不会留下半截批次。
// 去重在入账前完成，传输层重复投递的事件不会产生重复日志。
type Ingestor struct {
	ledger *Ledger
	store  dedup.Store
}

func NewIngestor(ledger *Ledger, store dedup.Store) *Ingestor {
	return &Ingestor{ledger: ledger, store: store}
}

// HandleEnvelope 处理一个已编码信封。expected 为该回调声明的事件类别，
// KindAny 表示全量回调、不校验类别。
// 返回的错误用 ShouldCommit 区分：协议违规重投也无济于事，跳过；
// 去重存储故障属于瞬态，保留消息等待重试。
func (in *Ingestor) HandleEnvelope(ctx context.Context, expected event.Kind, data []byte) error {
	env, err := event.DecodeEnvelope(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}

	// 只认初始化时绑定的事件源，其余来源一律拒绝
	source := in.ledger.Source()
	if !env.Source.Equals(source) {
		return fmt.Errorf("envelope from %s, expected %s: %w", env.Source, source, token.ErrAccessDenied)
	}

	// 第一遍：整批解码与类别校验，任何一条失败都不入账
	events := make([]event.Event, 0, len(env.Events))
	for i, raw := range env.Events {
		ev, err := event.Decode(raw)
		if err != nil {
			return fmt.Errorf("event %d of %d: %w", i, len(env.Events), err)
		}
		if expected != event.KindAny && ev.Kind != expected {
			return fmt.Errorf("event %d is %s, callback expects %s: %w",
				i, ev.Kind, expected, ErrUnexpectedKind)
		}
		events = append(events, ev)
	}

	// 第二遍：逐条判重后入账。判重失败即中断，已入账的事件已被标记，
	// 重投时会被跳过，不丢不重。
	appended := 0
	for _, ev := range events {
		seen, err := in.store.Seen(ctx, source, ev.Seq)
		if err != nil {
			return fmt.Errorf("dedup check seq=%d: %w", ev.Seq, err)
		}
		if seen {
			logger.Debugf("跳过重复事件, source=%s, seq=%d, kind=%s", source, ev.Seq, ev.Kind)
			continue
		}
		in.ledger.Append(ev)
		appended++
	}

	logger.Debugf("事件批次入账完成, source=%s, received=%d, appended=%d",
		source, len(events), appended)
	return nil
}

// ShouldCommit 判断错误是否允许提交消费位点。
// 确定性拒绝（越权来源、协议违规、路由配置错误）重投不会有不同结果，
// 记录后跳过；其余视为瞬态故障，保留位点等待重试。
func ShouldCommit(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, token.ErrAccessDenied) ||
		errors.Is(err, event.ErrUnknownKind) ||
		errors.Is(err, ErrBadEnvelope) ||
		errors.Is(err, ErrUnexpectedKind) ||
		errors.Is(err, ErrUnroutableTopic)
}
