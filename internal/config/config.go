package config

import (
	"fmt"

	"currency-ledger/internal/emitter"
	"currency-ledger/internal/event"
	"currency-ledger/internal/mq"
	"currency-ledger/internal/token"
	"currency-ledger/internal/types"
	"currency-ledger/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// ServerConfig 对外 HTTP 接口监听配置
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MonitorConfig 监控端口配置，Port <= 0 表示不启动监控
type MonitorConfig struct {
	Port int `yaml:"port"`
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs  int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）

	Topics []struct {
		Topic      string `yaml:"topic"`      // 订阅回调 topic 名称
		Partitions int    `yaml:"partitions"` // 分区数
	} `yaml:"topics"` // 启动时预创建的回调 topic 列表
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	opt := mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
	}
	for _, t := range c.Topics {
		opt.Topics = append(opt.Topics, struct {
			Topic      string
			Partitions int
		}{Topic: t.Topic, Partitions: t.Partitions})
	}
	return opt
}

// KafkaConsumerConfig 定义 Kafka 消费者配置。
// 所有时间相关参数单位均为毫秒；订阅的 topic 列表来自回调路由表，不在此配置。
type KafkaConsumerConfig struct {
	Name                  string   `yaml:"name"`                     // 用于标识用途
	Brokers               []string `yaml:"brokers"`                  // Kafka 集群 broker 地址列表
	GroupId               string   `yaml:"group_id"`                 // 消费者组 ID，同组实现高可用
	SessionTimeoutMs      int      `yaml:"session_timeout_ms"`       // 会话超时时间（ms）
	HeartbeatIntervalMs   int      `yaml:"heartbeat_interval_ms"`    // 心跳间隔（ms）
	ReadTimeoutMs         int      `yaml:"read_timeout_ms"`          // 拉取消息超时时间（ms）
	ReconnectBackoffMs    int      `yaml:"reconnect_backoff_ms"`     // 第一次重连延迟
	ReconnectBackoffMaxMs int      `yaml:"reconnect_backoff_max_ms"` // 最大重连间隔
	RetryBackoffMs        int      `yaml:"retry_backoff_ms"`         // 拉取失败重试间隔
}

func (c *KafkaConsumerConfig) ToConsumerOption(topics []string) mq.KafkaConsumerOption {
	return mq.KafkaConsumerOption{
		Name:                  c.Name,
		Brokers:               c.Brokers,
		Topics:                topics,
		GroupId:               c.GroupId,
		SessionTimeoutMs:      c.SessionTimeoutMs,
		HeartbeatIntervalMs:   c.HeartbeatIntervalMs,
		ReadTimeoutMs:         c.ReadTimeoutMs,
		ReconnectBackoffMs:    c.ReconnectBackoffMs,
		ReconnectBackoffMaxMs: c.ReconnectBackoffMaxMs,
		RetryBackoffMs:        c.RetryBackoffMs,
	}
}

// EmitterConfig 事件发射端阈值配置
type EmitterConfig struct {
	BatchBytes      int `yaml:"batch_bytes"`       // 积压字节阈值，默认 100KiB
	LingerMs        int `yaml:"linger_ms"`         // 最旧事件最长等待（毫秒），默认 10s
	FlushIntervalMs int `yaml:"flush_interval_ms"` // 心跳间隔（毫秒）
	SendTimeoutMs   int `yaml:"send_timeout_ms"`   // 单批发送到 Kafka 并等待 ack 的超时
}

// RedisConfig Redis 连接与去重键 TTL 配置；Addr 为空时退化为进程内去重
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	DedupTTLHrs int    `yaml:"dedup_ttl_hrs"`
}

// TokenConfig 事件源（代币账本）服务主配置
type TokenConfig struct {
	LogConf LogConfig     `yaml:"logger"`
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`

	Self        string          `yaml:"self"`        // 本服务身份（base58），作为事件信封的来源
	Token       token.TokenInfo `yaml:"token"`       // 代币元信息
	Controllers []string        `yaml:"controllers"` // 允许 mint 的调用方（base58）

	EmitterConf       EmitterConfig       `yaml:"emitter"`
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"`
}

// CallbackRoute 镜像侧的一条回调登记：topic 名、期望事件类别与可选的主体过滤
type CallbackRoute struct {
	Topic string `yaml:"topic"`
	Kind  string `yaml:"kind"`           // any / mint / transfer / burn
	From  string `yaml:"from,omitempty"` // 仅匹配该来源（base58），可选
	To    string `yaml:"to,omitempty"`   // 仅匹配该去向（base58），可选
}

// ParseKind 将配置中的类别名映射为事件类别
func (r *CallbackRoute) ParseKind() (event.Kind, error) {
	switch r.Kind {
	case "", "any":
		return event.KindAny, nil
	case "mint":
		return event.KindMint, nil
	case "transfer":
		return event.KindTransfer, nil
	case "burn":
		return event.KindBurn, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", r.Kind)
	}
}

// ToCallbackInfo 转换为订阅握手用的回调声明
func (r *CallbackRoute) ToCallbackInfo() (emitter.CallbackInfo, error) {
	kind, err := r.ParseKind()
	if err != nil {
		return emitter.CallbackInfo{}, err
	}
	filter := event.Filter{Kind: kind}
	if r.From != "" {
		p, err := types.TryPrincipalFromBase58(r.From)
		if err != nil {
			return emitter.CallbackInfo{}, err
		}
		filter.From = &p
	}
	if r.To != "" {
		p, err := types.TryPrincipalFromBase58(r.To)
		if err != nil {
			return emitter.CallbackInfo{}, err
		}
		filter.To = &p
	}
	return emitter.CallbackInfo{Filter: filter, Method: r.Topic}, nil
}

// MirrorConfig 镜像账本服务主配置
type MirrorConfig struct {
	LogConf LogConfig     `yaml:"logger"`
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`

	Self           string `yaml:"self"`            // 镜像自身身份（base58）
	Source         string `yaml:"source"`          // 绑定的事件源身份（base58）
	SourceEndpoint string `yaml:"source_endpoint"` // 事件源 HTTP 地址，订阅握手用

	Callbacks      []CallbackRoute `yaml:"callbacks"`        // 回调登记表
	RecoveryTickMs int             `yaml:"recovery_tick_ms"` // 恢复任务心跳间隔（毫秒）

	RedisConf         RedisConfig         `yaml:"redis"`
	KafkaConsumerConf KafkaConsumerConfig `yaml:"kafka_consumer"`
}
