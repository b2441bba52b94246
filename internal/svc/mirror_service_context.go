package svc

import (
	"fmt"
	"time"

	"currency-ledger/internal/config"
	"currency-ledger/internal/cron"
	"currency-ledger/internal/dedup"
	"currency-ledger/internal/emitter"
	"currency-ledger/internal/event"
	"currency-ledger/internal/mirror"
	"currency-ledger/internal/pkg/monitor"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// MirrorServiceContext 镜像服务的共享资源
type MirrorServiceContext struct {
	Config    *config.MirrorConfig
	Self      types.Principal
	Ledger    *mirror.Ledger
	Ingestor  *mirror.Ingestor
	Router    *mirror.Router
	Recovery  *mirror.Recovery
	Scheduler *cron.Scheduler
	Redis     *redis.Client
}

// NewMirrorServiceContext 创建镜像服务上下文
func NewMirrorServiceContext(c *config.MirrorConfig) (*MirrorServiceContext, error) {
	self, err := types.TryPrincipalFromBase58(c.Self)
	if err != nil {
		return nil, fmt.Errorf("invalid self principal: %w", err)
	}
	source, err := types.TryPrincipalFromBase58(c.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid source principal: %w", err)
	}

	ledger := mirror.NewLedger()
	if err := ledger.Init(source); err != nil {
		return nil, err
	}

	// 回调路由表与订阅握手声明来自同一份配置，保证两边一致
	routes := make(map[string]event.Kind, len(c.Callbacks))
	callbacks := make([]emitter.CallbackInfo, 0, len(c.Callbacks))
	for _, route := range c.Callbacks {
		kind, err := route.ParseKind()
		if err != nil {
			return nil, fmt.Errorf("callback route %q: %w", route.Topic, err)
		}
		routes[route.Topic] = kind

		info, err := route.ToCallbackInfo()
		if err != nil {
			return nil, fmt.Errorf("callback route %q: %w", route.Topic, err)
		}
		callbacks = append(callbacks, info)
	}
	if len(callbacks) == 0 {
		return nil, fmt.Errorf("at least one callback route is required")
	}

	// Redis 未配置时退化为进程内去重（单实例部署）
	var (
		store dedup.Store
		rdb   *redis.Client
	)
	if c.RedisConf.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     c.RedisConf.Addr,
			Password: c.RedisConf.Password,
			DB:       c.RedisConf.DB,
		})
		store = dedup.NewRedisStore(rdb, time.Duration(c.RedisConf.DedupTTLHrs)*time.Hour)
	} else {
		logger.Infof("Redis 未配置，使用进程内去重")
		store = dedup.NewMemoryStore()
	}

	ingestor := mirror.NewIngestor(ledger, store)
	scheduler := cron.NewScheduler()
	client := mirror.NewHTTPSubscribeClient(c.SourceEndpoint, self)

	monitor.RegisterJournalGauge(func() float64 { return float64(ledger.Len()) })

	ctx := &MirrorServiceContext{
		Config:    c,
		Self:      self,
		Ledger:    ledger,
		Ingestor:  ingestor,
		Router:    mirror.NewRouter(ingestor, routes),
		Recovery:  mirror.NewRecovery(scheduler, client, ledger, callbacks),
		Scheduler: scheduler,
		Redis:     rdb,
	}

	logger.Infof("镜像服务上下文初始化完成, source=%s, callbacks=%d", source, len(callbacks))
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *MirrorServiceContext) Close() {
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
