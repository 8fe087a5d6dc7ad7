package events

import (
	"fmt"
	"log"
	"strings"
)

// Open returns the publisher for broker: "rabbitmq", "kafka", or "none"/"" for logging only.
func Open(broker, rabbitURL string, kafkaBrokers []string, logger *log.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(broker)) {
	case "", "none", "log":
		return NewLogPublisher(logger), nil
	case "rabbitmq", "rabbit", "amqp":
		if rabbitURL == "" {
			return nil, fmt.Errorf("events: RABBITMQ_URL is required for broker %q", broker)
		}
		return DialRabbit(rabbitURL)
	case "kafka":
		return NewKafkaPublisher(kafkaBrokers)
	default:
		return nil, fmt.Errorf("events: unknown broker %q", broker)
	}
}
