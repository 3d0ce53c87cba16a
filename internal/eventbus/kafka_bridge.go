package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// KafkaBridge subscribes to a Bus as an ordinary subscriber and forwards
// every event as a JSON record to a Kafka topic, keyed by agent id. It gives
// external audit/analytics consumers a durable replay log without coupling
// the in-process bus to Kafka's availability: write failures are logged,
// never propagated back to the emitter.
type KafkaBridge struct {
	writer *kafka.Writer
}

// NewKafkaBridge constructs a bridge writing to topic across the given
// brokers. Call Attach to start forwarding events from a Bus.
func NewKafkaBridge(brokers []string, topic string) *KafkaBridge {
	return &KafkaBridge{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
		},
	}
}

// Attach subscribes the bridge to bus. Returns the subscription handle so
// the caller can Unsubscribe during shutdown.
func (k *KafkaBridge) Attach(bus *Bus) Handle {
	return bus.Subscribe(k.forward)
}

func (k *KafkaBridge) forward(e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("eventbus: kafka bridge marshal failed")
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(e.Meta.AgentID),
		Value: b,
	})
	if err != nil {
		log.Warn().Err(err).Str("event", string(e.Type)).Msg("eventbus: kafka bridge write failed")
	}
}

// Close flushes and closes the underlying Kafka writer.
func (k *KafkaBridge) Close() error {
	return k.writer.Close()
}
