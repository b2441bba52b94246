package emitter

import (
	"context"
	"sync"
	"time"

	"currency-ledger/internal/event"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"
)

const (
	// 与事件源的默认发射阈值保持一致：积压超过 100KiB 立即发，否则最长等 10s
	DefaultBatchBytes = 100 * 1024
	DefaultLinger     = 10 * time.Second
)

// Transport 把一批已编码事件投递给订阅方的某个回调。
// 实现方负责封装 Envelope；返回 error 表示整批投递失败，发射端会在下个心跳重试。
type Transport interface {
	Deliver(ctx context.Context, subscriber types.Principal, method string, events [][]byte) error
}

type pendingEvent struct {
	ev  event.Event
	enc []byte
}

type queueKey struct {
	subscriber types.Principal
	method     string
}

// Emitter 将"状态已变更"与"变更已送达"解耦。
// 新事件先进入 pending 缓冲；达到字节阈值或最旧事件超过 linger 后，
// 按订阅方过滤器分拣进各自的出站队列；每个心跳对每个非空队列投递一批。
// 单个订阅方投递失败只影响它自己的队列（原序保留，下个心跳重试）。
type Emitter struct {
	mu        sync.Mutex
	registry  *Registry
	transport Transport

	batchBytes int
	linger     time.Duration

	seq          uint64
	pending      []pendingEvent
	pendingBytes int
	oldestAt     time.Time

	queues     map[queueKey][]pendingEvent
	queueOrder []queueKey
}

func NewEmitter(registry *Registry, transport Transport, batchBytes int, linger time.Duration) *Emitter {
	if batchBytes <= 0 {
		batchBytes = DefaultBatchBytes
	}
	if linger <= 0 {
		linger = DefaultLinger
	}
	return &Emitter{
		registry:   registry,
		transport:  transport,
		batchBytes: batchBytes,
		linger:     linger,
		queues:     make(map[queueKey][]pendingEvent),
	}
}

// Emit 为事件分配单调序号并放入 pending 缓冲。编码在此处完成一次，
// 之后该事件归缓冲/出站队列所有，不再修改。
func (e *Emitter) Emit(ev event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ev.Seq = e.seq

	enc, err := event.Encode(ev)
	if err != nil {
		// 编码失败说明事件构造有 bug，回滚序号避免消费端观察到空洞
		e.seq--
		return err
	}

	if len(e.pending) == 0 {
		e.oldestAt = time.Now()
	}
	e.pending = append(e.pending, pendingEvent{ev: ev, enc: enc})
	e.pendingBytes += len(enc)
	return nil
}

// Flush 是心跳入口：先判断是否达到分拣条件，再尝试投递所有非空队列。
// 投递阶段不持有锁之外的共享状态假设，单个失败不阻塞其他订阅方。
func (e *Emitter) Flush(ctx context.Context, now time.Time) {
	e.mu.Lock()
	if len(e.pending) > 0 &&
		(e.pendingBytes >= e.batchBytes || now.Sub(e.oldestAt) >= e.linger) {
		e.routePendingLocked()
	}
	e.mu.Unlock()

	e.deliverQueues(ctx)
}

// Drain 无视阈值分拣并投递全部积压事件，进程退出前调用，
// 避免未达阈值的 pending 事件随进程丢失
func (e *Emitter) Drain(ctx context.Context) {
	e.mu.Lock()
	if len(e.pending) > 0 {
		e.routePendingLocked()
	}
	e.mu.Unlock()

	e.deliverQueues(ctx)
}

func (e *Emitter) deliverQueues(ctx context.Context) {
	type delivery struct {
		key   queueKey
		batch [][]byte
		count int
	}

	e.mu.Lock()
	var deliveries []delivery
	for _, key := range e.queueOrder {
		q := e.queues[key]
		if len(q) == 0 {
			continue
		}
		batch := make([][]byte, 0, len(q))
		for _, pe := range q {
			batch = append(batch, pe.enc)
		}
		deliveries = append(deliveries, delivery{key: key, batch: batch, count: len(q)})
	}
	e.mu.Unlock()

	for _, d := range deliveries {
		if err := e.transport.Deliver(ctx, d.key.subscriber, d.key.method, d.batch); err != nil {
			logger.Errorf("事件批次投递失败, subscriber=%s, method=%s, events=%d, err=%v",
				d.key.subscriber, d.key.method, d.count, err)
			continue
		}
		e.mu.Lock()
		// 投递期间可能有新事件入队，只清掉已送达的前缀
		e.queues[d.key] = e.queues[d.key][d.count:]
		e.mu.Unlock()
		logger.Debugf("事件批次投递成功, subscriber=%s, method=%s, events=%d",
			d.key.subscriber, d.key.method, d.count)
	}
}

// routePendingLocked 将 pending 中的事件按订阅过滤器分拣进出站队列并清空缓冲。
// 同一事件命中同一订阅方同一回调的多条过滤器时只入队一次；
// 未命中任何订阅方的事件在此处结束生命周期。
func (e *Emitter) routePendingLocked() {
	subs := e.registry.Snapshot()

	for _, pe := range e.pending {
		for _, sub := range subs {
			seen := make(map[string]struct{}, len(sub.Callbacks))
			for _, cb := range sub.Callbacks {
				if !cb.Filter.Matches(pe.ev) {
					continue
				}
				if _, dup := seen[cb.Method]; dup {
					continue
				}
				seen[cb.Method] = struct{}{}

				key := queueKey{subscriber: sub.Subscriber, method: cb.Method}
				if _, ok := e.queues[key]; !ok {
					e.queueOrder = append(e.queueOrder, key)
				}
				e.queues[key] = append(e.queues[key], pe)
			}
		}
	}

	e.pending = nil
	e.pendingBytes = 0
}

// PendingCount 返回尚未分拣的事件数（监控用）
func (e *Emitter) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// QueuedCount 返回已分拣待投递（含重试中）的事件总数
func (e *Emitter) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	total := 0
	for _, q := range e.queues {
		total += len(q)
	}
	return total
}
