package svc

import (
	"fmt"
	"time"

	"currency-ledger/internal/config"
	"currency-ledger/internal/emitter"
	"currency-ledger/internal/mq"
	"currency-ledger/internal/pkg/monitor"
	"currency-ledger/internal/token"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// TokenServiceContext 事件源服务的共享资源
type TokenServiceContext struct {
	Config   *config.TokenConfig
	Self     types.Principal
	Token    *token.CurrencyToken
	Registry *emitter.Registry
	Emitter  *emitter.Emitter
	Producer *kafka.Producer
}

// NewTokenServiceContext 创建事件源服务上下文
func NewTokenServiceContext(c *config.TokenConfig) (*TokenServiceContext, error) {
	self, err := types.TryPrincipalFromBase58(c.Self)
	if err != nil {
		return nil, fmt.Errorf("invalid self principal: %w", err)
	}
	if len(c.Controllers) == 0 {
		return nil, fmt.Errorf("at least one controller is required")
	}
	controllers := make([]types.Principal, 0, len(c.Controllers))
	for _, s := range c.Controllers {
		p, err := types.TryPrincipalFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("invalid controller principal %q: %w", s, err)
		}
		controllers = append(controllers, p)
	}

	producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
	if err != nil {
		logger.Errorf("Kafka producer 初始化失败: %v", err)
		return nil, err
	}

	transport := mq.NewKafkaTransport(self, producer,
		time.Duration(c.EmitterConf.SendTimeoutMs)*time.Millisecond)

	registry := emitter.NewRegistry()
	em := emitter.NewEmitter(registry, transport,
		c.EmitterConf.BatchBytes,
		time.Duration(c.EmitterConf.LingerMs)*time.Millisecond)

	monitor.RegisterQueueGauges(
		func() float64 { return float64(em.PendingCount()) },
		func() float64 { return float64(em.QueuedCount()) },
	)

	ctx := &TokenServiceContext{
		Config:   c,
		Self:     self,
		Token:    token.NewCurrencyToken(c.Token, controllers),
		Registry: registry,
		Emitter:  em,
		Producer: producer,
	}

	logger.Infof("账本服务上下文初始化完成, symbol=%s, controllers=%d", c.Token.Symbol, len(controllers))
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *TokenServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Close()
	}
}
