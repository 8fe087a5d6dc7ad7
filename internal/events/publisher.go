package events

import (
	"context"
	"io"
	"log"
)

// Publisher delivers an encoded event to a broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
	Close() error
}

// LogPublisher writes events to a logger. It is used when no broker is configured.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic, key string, body []byte) error {
	p.logger.Printf("events: publish topic=%s key=%s bytes=%d", topic, key, len(body))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
