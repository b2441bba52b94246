package mq

import (
	"context"
	"fmt"
	"time"

	"currency-ledger/internal/event"
	"currency-ledger/internal/types"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const defaultSendTimeout = 10 * time.Second

type sendFunc func(ctx context.Context, producer *kafka.Producer, jobs []*KafkaJob, timeout time.Duration) ([]*KafkaJob, []KafkaSendResult)

// KafkaTransport 把发射端的一次批量投递映射为一条 Kafka 消息：
// 整批事件封装进一个信封，topic 即订阅方声明的回调名。
// 固定写 0 号分区，保证同一回调内的事件顺序与产生顺序一致。
type KafkaTransport struct {
	source   types.Principal
	producer *kafka.Producer
	timeout  time.Duration
	send     sendFunc
}

func NewKafkaTransport(source types.Principal, producer *kafka.Producer, timeout time.Duration) *KafkaTransport {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &KafkaTransport{
		source:   source,
		producer: producer,
		timeout:  timeout,
		send:     SendKafkaJobs,
	}
}

func (t *KafkaTransport) Deliver(ctx context.Context, subscriber types.Principal, method string, events [][]byte) error {
	data, err := event.EncodeEnvelope(t.source, events)
	if err != nil {
		return err
	}

	jobs := []*KafkaJob{{Topic: method, Partition: 0, Value: data}}
	_, failed := t.send(ctx, t.producer, jobs, t.timeout)
	if len(failed) > 0 {
		return fmt.Errorf("deliver to subscriber %s via topic %s: %w", subscriber, method, failed[0].Err)
	}
	return nil
}
