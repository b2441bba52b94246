package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency-ledger/internal/cron"
	"currency-ledger/internal/emitter"
	"currency-ledger/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscribeClient struct {
	calls []([]emitter.CallbackInfo)
	err   error
}

func (f *fakeSubscribeClient) Subscribe(_ context.Context, callbacks []emitter.CallbackInfo) error {
	f.calls = append(f.calls, callbacks)
	return f.err
}

func fullMirrorCallbacks() []emitter.CallbackInfo {
	return []emitter.CallbackInfo{
		{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"},
	}
}

func newTestRecovery(t *testing.T) (*Recovery, *Ledger, *fakeSubscribeClient, *cron.Scheduler) {
	t.Helper()
	ledger := NewLedger()
	require.NoError(t, ledger.Init(testPrincipal(1)))
	sched := cron.NewScheduler()
	client := &fakeSubscribeClient{}
	return NewRecovery(sched, client, ledger, fullMirrorCallbacks()), ledger, client, sched
}

func TestResubscriptionHandshake(t *testing.T) {
	rec, ledger, client, sched := newTestRecovery(t)

	rec.ScheduleResubscription()
	assert.Equal(t, 1, sched.Len())

	rec.Tick(context.Background(), time.Now())

	require.Len(t, client.calls, 1)
	assert.Equal(t, fullMirrorCallbacks(), client.calls[0])
	assert.Equal(t, StateSubscribed, ledger.State())

	// 一次性任务已被消费，后续心跳不再触发
	rec.Tick(context.Background(), time.Now().Add(time.Hour))
	assert.Len(t, client.calls, 1)
	assert.Equal(t, 0, sched.Len())
}

func TestResubscriptionResetsSubscribedState(t *testing.T) {
	rec, ledger, _, _ := newTestRecovery(t)
	ledger.MarkSubscribed()

	rec.ScheduleResubscription()
	assert.Equal(t, StateAwaitingSubscription, ledger.State())
}

func TestFailedHandshakeIsNotRetried(t *testing.T) {
	rec, ledger, client, sched := newTestRecovery(t)
	client.err = errors.New("source unreachable")

	rec.ScheduleResubscription()
	rec.Tick(context.Background(), time.Now())

	require.Len(t, client.calls, 1)
	assert.Equal(t, StateAwaitingSubscription, ledger.State())

	// 失败只记录，任务不会重新入队
	rec.Tick(context.Background(), time.Now().Add(time.Hour))
	assert.Len(t, client.calls, 1)
	assert.Equal(t, 0, sched.Len())
}
