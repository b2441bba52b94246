package monitor

import "github.com/prometheus/client_golang/prometheus"

// 账本与事件链路的核心指标，/metrics 暴露
var (
	// EventsEmitted 事件源侧按类别统计已产生的事件数
	EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_emitted_total",
		Help: "Number of ledger events emitted, by kind.",
	}, []string{"kind"})

	// OperationsRejected 事件源侧按错误码统计被拒绝的操作数
	OperationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_rejected_total",
		Help: "Number of rejected ledger operations, by error code.",
	}, []string{"code"})

	// MessagesConsumed 镜像侧按处理结果统计消费的消息数
	MessagesConsumed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_messages_consumed_total",
		Help: "Number of Kafka messages consumed by the mirror, by outcome.",
	}, []string{"outcome"}) // ok / discarded / retried
)

func init() {
	prometheus.MustRegister(EventsEmitted, OperationsRejected, MessagesConsumed)
}

// RegisterQueueGauges 注册发射端积压指标，取值函数由调用方提供
func RegisterQueueGauges(pending, queued func() float64) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_events_pending",
			Help: "Events buffered and not yet routed to outbound queues.",
		}, pending),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ledger_events_queued",
			Help: "Events routed to outbound queues and awaiting delivery.",
		}, queued),
	)
}

// RegisterJournalGauge 注册镜像日志长度指标
func RegisterJournalGauge(length func() float64) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mirror_journal_entries",
		Help: "Number of entries in the mirror event journal.",
	}, length))
}
