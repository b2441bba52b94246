package mirror

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/internal/event"
)

// ErrUnroutableTopic 消息来自未登记的 topic，说明消费组订阅与路由表不一致
var ErrUnroutableTopic = errors.New("no callback registered for topic")

// Router 将消费到的消息按 topic 路由到对应回调的摄入处理。
// topic 即订阅时声明的回调方法名，每个 topic 绑定一个期望事件类别。
type Router struct {
	ingestor *Ingestor
	routes   map[string]event.Kind
}

func NewRouter(ingestor *Ingestor, routes map[string]event.Kind) *Router {
	r := &Router{
		ingestor: ingestor,
		routes:   make(map[string]event.Kind, len(routes)),
	}
	for topic, kind := range routes {
		r.routes[topic] = kind
	}
	return r
}

// Topics 返回路由表中的全部 topic，供消费端订阅
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for topic := range r.routes {
		topics = append(topics, topic)
	}
	return topics
}

// Handle 处理一条消息；错误的提交语义见 ShouldCommit
func (r *Router) Handle(ctx context.Context, topic string, value []byte) error {
	expected, ok := r.routes[topic]
	if !ok {
		return fmt.Errorf("topic %q: %w", topic, ErrUnroutableTopic)
	}
	return r.ingestor.HandleEnvelope(ctx, expected, value)
}
