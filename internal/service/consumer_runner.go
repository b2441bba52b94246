package service

import (
	"context"

	"currency-ledger/internal/mirror"
	"currency-ledger/internal/mq"
	"currency-ledger/internal/pkg/monitor"
	"currency-ledger/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ConsumerRunner 封装镜像侧的 Kafka 消费主循环。
// 提交策略：处理成功提交位点；确定性拒绝记录后照样提交（重投无意义）；
// 瞬态失败不提交并回拨位点，下一轮重新拉取同一条消息。
type ConsumerRunner struct {
	kafka  *mq.KafkaConsumer
	ctx    context.Context
	cancel context.CancelFunc
}

func NewConsumerRunner(opt mq.KafkaConsumerOption, router *mirror.Router) (*ConsumerRunner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	var kc *mq.KafkaConsumer
	kc, err := mq.NewKafkaConsumer(opt, func(msg *kafka.Message) {
		handleMessage(ctx, kc, router, msg)
	})
	if err != nil {
		cancel() // 避免泄漏
		return nil, err
	}

	return &ConsumerRunner{
		kafka:  kc,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func handleMessage(ctx context.Context, kc *mq.KafkaConsumer, router *mirror.Router, msg *kafka.Message) {
	topic := ""
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	err := router.Handle(ctx, topic, msg.Value)
	if err == nil {
		monitor.MessagesConsumed.WithLabelValues("ok").Inc()
		_ = kc.Commit(msg)
		return
	}

	if mirror.ShouldCommit(err) {
		logger.Errorf("丢弃无法处理的消息, topic=%s, partition=%d, offset=%d, err=%v",
			topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset, err)
		monitor.MessagesConsumed.WithLabelValues("discarded").Inc()
		_ = kc.Commit(msg)
		return
	}

	logger.Errorf("瞬态失败, 保留位点等待重试, topic=%s, partition=%d, offset=%d, err=%v",
		topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset, err)
	monitor.MessagesConsumed.WithLabelValues("retried").Inc()
	if seekErr := kc.SeekBack(msg); seekErr != nil {
		logger.Errorf("位点回拨失败, topic=%s, offset=%d, err=%v",
			topic, msg.TopicPartition.Offset, seekErr)
	}
}

// Start 启动消费主循环（非阻塞）
func (cr *ConsumerRunner) Start() {
	if err := cr.kafka.Start(cr.ctx); err != nil {
		logger.Errorf("Kafka consumer start failed: %v", err)

		// 启动失败让主程序终止，由服务治理平台重启
		panic(err)
	}
}

// Stop 优雅退出
func (cr *ConsumerRunner) Stop() {
	cr.cancel()
	cr.kafka.Close()
}
