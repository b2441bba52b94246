package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"currency-ledger/internal/emitter"
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

type countingTransport struct {
	mu    sync.Mutex
	count int
}

func (c *countingTransport) Deliver(_ context.Context, _ types.Principal, _ string, events [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count += len(events)
	return nil
}

func (c *countingTransport) delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestStopDrainsPendingEvents(t *testing.T) {
	reg := emitter.NewRegistry()
	tr := &countingTransport{}
	// 默认阈值（100KiB / 10s），心跳期间不会自然触发分拣
	em := emitter.NewEmitter(reg, tr, 0, 0)
	require.NoError(t, reg.Subscribe(testPrincipal(9), []emitter.CallbackInfo{
		{Filter: event.Filter{Kind: event.KindAny}, Method: "events_callback"},
	}))
	require.NoError(t, em.Emit(event.NewMint(testPrincipal(1), 100, 1)))

	fs := NewFlushService(em, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		fs.Start()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, tr.delivered())

	fs.Stop()
	<-done

	// 退出时未达阈值的事件也要送出去
	assert.Equal(t, 1, tr.delivered())
	assert.Equal(t, 0, em.PendingCount())
	assert.Equal(t, 0, em.QueuedCount())
}
