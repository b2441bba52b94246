package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency-ledger/internal/event"
	"currency-ledger/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal(b byte) types.Principal {
	var p types.Principal
	for i := range p {
		p[i] = b
	}
	return p
}

type deliveredBatch struct {
	subscriber types.Principal
	method     string
	events     []event.Event
}

// fakeTransport 记录所有投递，可按 (subscriber, method) 注入失败
type fakeTransport struct {
	batches []deliveredBatch
	failing map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failing: make(map[string]bool)}
}

func (f *fakeTransport) Deliver(_ context.Context, subscriber types.Principal, method string, events [][]byte) error {
	if f.failing[subscriber.String()+"/"+method] {
		return errors.New("transport down")
	}
	batch := deliveredBatch{subscriber: subscriber, method: method}
	for _, data := range events {
		ev, err := event.Decode(data)
		if err != nil {
			return err
		}
		batch.events = append(batch.events, ev)
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeTransport) eventsFor(sub types.Principal, method string) []event.Event {
	var out []event.Event
	for _, b := range f.batches {
		if b.subscriber.Equals(sub) && b.method == method {
			out = append(out, b.events...)
		}
	}
	return out
}

func newTestEmitter(t *testing.T, batchBytes int, linger time.Duration) (*Emitter, *Registry, *fakeTransport) {
	t.Helper()
	reg := NewRegistry()
	tr := newFakeTransport()
	return NewEmitter(reg, tr, batchBytes, linger), reg, tr
}

func TestFlushBeforeThresholdDoesNothing(t *testing.T) {
	em, reg, tr := newTestEmitter(t, DefaultBatchBytes, DefaultLinger)
	sub := testPrincipal(10)
	require.NoError(t, reg.Subscribe(sub, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))

	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 100, 1)))
	em.Flush(context.Background(), time.Now())

	assert.Empty(t, tr.batches)
	assert.Equal(t, 1, em.PendingCount())
}

func TestLingerThresholdTriggersFlush(t *testing.T) {
	em, reg, tr := newTestEmitter(t, DefaultBatchBytes, DefaultLinger)
	sub := testPrincipal(10)
	require.NoError(t, reg.Subscribe(sub, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))

	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 100, 1)))

	// 最旧事件超过 linger 即发射
	em.Flush(context.Background(), time.Now().Add(DefaultLinger))

	events := tr.eventsFor(sub, "events_callback")
	require.Len(t, events, 1)
	assert.Equal(t, uint64(100), events[0].Amount)
	assert.Equal(t, 0, em.PendingCount())
	assert.Equal(t, 0, em.QueuedCount())
}

func TestByteThresholdTriggersFlush(t *testing.T) {
	// 阈值压到 1 字节，任何事件都立即可发
	em, reg, tr := newTestEmitter(t, 1, time.Hour)
	sub := testPrincipal(10)
	require.NoError(t, reg.Subscribe(sub, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))

	require.NoError(t, em.Emit(event.NewBurn(testPrincipal(1), 5, 1)))
	em.Flush(context.Background(), time.Now())

	require.Len(t, tr.eventsFor(sub, "events_callback"), 1)
}

func TestFilteredFanOutAndOrdering(t *testing.T) {
	em, reg, tr := newTestEmitter(t, 1, time.Hour)

	tracked := testPrincipal(7)
	other := testPrincipal(8)
	mirrorAll := testPrincipal(20)
	mirrorTracked := testPrincipal(21)

	// 全量镜像：单回调空过滤器
	require.NoError(t, reg.Subscribe(mirrorAll, []CallbackInfo{
		{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"},
	}))
	// 定向镜像：只关心 tracked 的资金流向
	require.NoError(t, reg.Subscribe(mirrorTracked, []CallbackInfo{
		{Filter: event.Filter{Kind: event.KindMint, To: &tracked}, Method: "mint_callback"},
		{Filter: event.Filter{Kind: event.KindTransfer, From: &tracked}, Method: "transfer_callback"},
		{Filter: event.Filter{Kind: event.KindTransfer, To: &tracked}, Method: "transfer_callback"},
		{Filter: event.Filter{Kind: event.KindBurn, From: &tracked}, Method: "burn_callback"},
	}))

	require.NoError(t, em.Emit(event.NewMint(tracked, 100, 1)))
	require.NoError(t, em.Emit(event.NewMint(other, 50, 2)))
	require.NoError(t, em.Emit(event.NewTransfer(tracked, other, 30, 3)))
	require.NoError(t, em.Emit(event.NewTransfer(other, other, 9, 4)))
	require.NoError(t, em.Emit(event.NewBurn(other, 1, 5)))

	em.Flush(context.Background(), time.Now())

	// 全量镜像按产生顺序收到全部 5 条
	all := tr.eventsFor(mirrorAll, "events_callback")
	require.Len(t, all, 5)
	for i, ev := range all {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}

	// 定向镜像只收到与 tracked 相关的事件，且不串回调
	mints := tr.eventsFor(mirrorTracked, "mint_callback")
	require.Len(t, mints, 1)
	assert.Equal(t, uint64(100), mints[0].Amount)

	transfers := tr.eventsFor(mirrorTracked, "transfer_callback")
	require.Len(t, transfers, 1)
	assert.Equal(t, uint64(30), transfers[0].Amount)

	assert.Empty(t, tr.eventsFor(mirrorTracked, "burn_callback"))
}

func TestOverlappingFiltersDeliverOnce(t *testing.T) {
	em, reg, tr := newTestEmitter(t, 1, time.Hour)

	tracked := testPrincipal(7)
	mirror := testPrincipal(21)
	require.NoError(t, reg.Subscribe(mirror, []CallbackInfo{
		{Filter: event.Filter{Kind: event.KindTransfer, From: &tracked}, Method: "transfer_callback"},
		{Filter: event.Filter{Kind: event.KindTransfer, To: &tracked}, Method: "transfer_callback"},
	}))

	// 自转账同时命中 from/to 两条过滤器，但只应投递一次
	require.NoError(t, em.Emit(event.NewTransfer(tracked, tracked, 10, 1)))
	em.Flush(context.Background(), time.Now())

	assert.Len(t, tr.eventsFor(mirror, "transfer_callback"), 1)
}

func TestDeliveryFailureIsolatedAndRetried(t *testing.T) {
	em, reg, tr := newTestEmitter(t, 1, time.Hour)

	healthy := testPrincipal(30)
	broken := testPrincipal(31)
	require.NoError(t, reg.Subscribe(healthy, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))
	require.NoError(t, reg.Subscribe(broken, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))
	tr.failing[broken.String()+"/events_callback"] = true

	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 100, 1)))
	em.Flush(context.Background(), time.Now())

	// 健康订阅方不受失败订阅方影响
	assert.Len(t, tr.eventsFor(healthy, "events_callback"), 1)
	assert.Empty(t, tr.eventsFor(broken, "events_callback"))
	assert.Equal(t, 1, em.QueuedCount())

	// 故障恢复后，下个心跳重投，且新旧事件保持原序
	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 200, 2)))
	tr.failing[broken.String()+"/events_callback"] = false
	em.Flush(context.Background(), time.Now())

	events := tr.eventsFor(broken, "events_callback")
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, uint64(2), events[1].Seq)
	assert.Equal(t, 0, em.QueuedCount())

	// 已成功的订阅方不会因重试收到重复
	assert.Len(t, tr.eventsFor(healthy, "events_callback"), 2)
}

func TestEventMatchingNobodyIsDropped(t *testing.T) {
	em, reg, tr := newTestEmitter(t, 1, time.Hour)

	tracked := testPrincipal(7)
	mirror := testPrincipal(21)
	require.NoError(t, reg.Subscribe(mirror, []CallbackInfo{
		{Filter: event.Filter{Kind: event.KindMint, To: &tracked}, Method: "mint_callback"},
	}))

	require.NoError(t, em.Emit(event.NewBurn(testPrincipal(1), 5, 1)))
	em.Flush(context.Background(), time.Now())

	assert.Empty(t, tr.batches)
	assert.Equal(t, 0, em.PendingCount())
	assert.Equal(t, 0, em.QueuedCount())
}

func TestDrainIgnoresThresholds(t *testing.T) {
	em, reg, tr := newTestEmitter(t, DefaultBatchBytes, DefaultLinger)
	sub := testPrincipal(10)
	require.NoError(t, reg.Subscribe(sub, []CallbackInfo{{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"}}))

	// 刚入队的事件既没到字节阈值也没到 linger
	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 100, 1)))
	em.Flush(context.Background(), time.Now())
	require.Empty(t, tr.batches)

	em.Drain(context.Background())

	require.Len(t, tr.eventsFor(sub, "events_callback"), 1)
	assert.Equal(t, 0, em.PendingCount())
	assert.Equal(t, 0, em.QueuedCount())
}
