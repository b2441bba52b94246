package mq

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"currency-ledger/pkg/logger"
	"currency-ledger/pkg/utils"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConsumerOption 消费者参数，时间相关参数单位均为毫秒。
// Topics 为订阅的回调 topic 列表，来自镜像的回调路由表。
type KafkaConsumerOption struct {
	Name                  string
	Brokers               []string
	Topics                []string
	GroupId               string
	SessionTimeoutMs      int
	HeartbeatIntervalMs   int
	ReadTimeoutMs         int
	ReconnectBackoffMs    int
	ReconnectBackoffMaxMs int
	RetryBackoffMs        int
}

type Handler func(msg *kafka.Message)

// KafkaConsumer 封装多 topic 消费逻辑，只支持手动提交 offset
type KafkaConsumer struct {
	Consumer *kafka.Consumer
	Opt      KafkaConsumerOption
	Handler  Handler
	Done     chan struct{}
}

func buildClientID(service string) string {
	hostname, _ := os.Hostname()
	localIP, _ := utils.GetLocalIP()
	return fmt.Sprintf("%s-%s-%s", service, hostname, localIP)
}

// NewKafkaConsumer 创建并初始化消费者实例
func NewKafkaConsumer(opt KafkaConsumerOption, handler Handler) (*KafkaConsumer, error) {
	kconf := &kafka.ConfigMap{
		"bootstrap.servers":     strings.Join(opt.Brokers, ","),
		"group.id":              opt.GroupId,
		"session.timeout.ms":    opt.SessionTimeoutMs,
		"heartbeat.interval.ms": opt.HeartbeatIntervalMs,
		"auto.offset.reset":     "earliest", // 镜像需要完整事件流，从头消费
		"enable.auto.commit":    false,      // 只支持手动提交
		"client.id":             buildClientID(opt.Name),

		// 连接 & 重试相关
		"reconnect.backoff.ms":     opt.ReconnectBackoffMs,
		"reconnect.backoff.max.ms": opt.ReconnectBackoffMaxMs,
		"retry.backoff.ms":         opt.RetryBackoffMs,
	}
	c, err := kafka.NewConsumer(kconf)
	if err != nil {
		logger.Errorf("kafka consumer create error: %v", err)
		return nil, err
	}
	logger.Infof("kafka consumer created, brokers=%v, topics=%v, group=%s", opt.Brokers, opt.Topics, opt.GroupId)
	return &KafkaConsumer{
		Consumer: c,
		Opt:      opt,
		Handler:  handler,
		Done:     make(chan struct{}),
	}, nil
}

// Start 启动消费者主循环（不自动提交 offset）
func (kc *KafkaConsumer) Start(ctx context.Context) error {
	err := kc.Consumer.SubscribeTopics(kc.Opt.Topics, nil)
	if err != nil {
		logger.Errorf("kafka subscribe topics error: %v", err)
		return err
	}
	logger.Infof("kafka consumer subscribed, topics=%v", kc.Opt.Topics)

	go func() {
		for {
			select {
			case <-kc.Done:
				logger.Infof("kafka consumer received done signal, exiting.")
				return
			case <-ctx.Done():
				logger.Infof("kafka consumer received context done, exiting.")
				return
			default:
				msg, err := kc.Consumer.ReadMessage(time.Duration(kc.Opt.ReadTimeoutMs) * time.Millisecond)
				if err != nil {
					if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
						continue
					}
					logger.Errorf("kafka consumer read message error: %v", err)
					continue
				}
				logger.Debugf("kafka consumer received message, topic=%s, partition=%d, offset=%d",
					*msg.TopicPartition.Topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset)
				kc.Handler(msg) // 只回调，不自动提交 offset
			}
		}
	}()
	return nil
}

// Commit 手动提交 offset，支持单条或批量
func (kc *KafkaConsumer) Commit(messages ...*kafka.Message) error {
	if len(messages) == 0 {
		_, err := kc.Consumer.Commit()
		if err != nil {
			logger.Errorf("kafka commit offsets error: %v", err)
		}
		return err
	}
	var firstErr error
	for _, msg := range messages {
		_, err := kc.Consumer.CommitMessage(msg)
		if err != nil && firstErr == nil {
			firstErr = err
			logger.Errorf("kafka commit offset error: %v, topic=%s, partition=%d, offset=%d",
				err, *msg.TopicPartition.Topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset)
		}
	}
	return firstErr
}

// SeekBack 回拨到指定消息的位点，用于瞬态失败后原地重试
func (kc *KafkaConsumer) SeekBack(msg *kafka.Message) error {
	return kc.Consumer.Seek(kafka.TopicPartition{
		Topic:     msg.TopicPartition.Topic,
		Partition: msg.TopicPartition.Partition,
		Offset:    msg.TopicPartition.Offset,
	}, 0)
}

// Close 优雅关闭消费者
func (kc *KafkaConsumer) Close() {
	close(kc.Done)
	kc.Consumer.Close()
	logger.Infof("kafka consumer closed")
}
