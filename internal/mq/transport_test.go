package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"currency-ledger/internal/event"
	"currency-ledger/internal/types"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
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

func TestKafkaTransportWrapsBatchInEnvelope(t *testing.T) {
	source := testPrincipal(1)
	tr := NewKafkaTransport(source, nil, time.Second)

	var sent []*KafkaJob
	tr.send = func(_ context.Context, _ *kafka.Producer, jobs []*KafkaJob, _ time.Duration) ([]*KafkaJob, []KafkaSendResult) {
		sent = jobs
		return jobs, nil
	}

	ev := event.NewMint(testPrincipal(2), 100, 1)
	ev.Seq = 1
	enc, err := event.Encode(ev)
	require.NoError(t, err)

	require.NoError(t, tr.Deliver(context.Background(), testPrincipal(9), "events_callback", [][]byte{enc}))

	require.Len(t, sent, 1)
	assert.Equal(t, "events_callback", sent[0].Topic)
	assert.Equal(t, int32(0), sent[0].Partition)

	env, err := event.DecodeEnvelope(sent[0].Value)
	require.NoError(t, err)
	assert.Equal(t, source, env.Source)
	require.Len(t, env.Events, 1)

	decoded, err := event.Decode(env.Events[0])
	require.NoError(t, err)
	assert.Equal(t, ev, decoded)
}

func TestKafkaTransportPropagatesSendFailure(t *testing.T) {
	tr := NewKafkaTransport(testPrincipal(1), nil, time.Second)
	tr.send = func(_ context.Context, _ *kafka.Producer, jobs []*KafkaJob, _ time.Duration) ([]*KafkaJob, []KafkaSendResult) {
		return nil, []KafkaSendResult{{Job: jobs[0], Err: errors.New("broker down")}}
	}

	ev := event.NewBurn(testPrincipal(2), 5, 1)
	enc, err := event.Encode(ev)
	require.NoError(t, err)

	err = tr.Deliver(context.Background(), testPrincipal(9), "events_callback", [][]byte{enc})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
