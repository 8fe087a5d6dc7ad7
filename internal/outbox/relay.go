package outbox

import (
	"context"
	"errors"
	"io"
	"log"
	"time"
)

// Source is the outbox table as seen by the relay.
type Source interface {
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]Record, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Recorder counts publish outcomes; result is "ok" or "error".
type Recorder interface {
	OutboxPublished(topic, result string)
}

type RelayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Relay drains the outbox into a Publisher.
type Relay struct {
	source   Source
	pub      Publisher
	cfg      RelayConfig
	logger   *log.Logger
	recorder Recorder
}

func NewRelay(source Source, pub Publisher, cfg RelayConfig, logger *log.Logger, recorder Recorder) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Relay{source: source, pub: pub, cfg: cfg, logger: logger, recorder: recorder}
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Printf("outbox relay: started interval=%s batch=%d", r.cfg.Interval, r.cfg.BatchSize)
	for {
		if _, err := r.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Printf("outbox relay: flush error=%v", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Printf("outbox relay: stopped")
			return
		case <-ticker.C:
		}
	}
}

// Flush publishes one batch and returns how many records were sent. A failed
// record is marked with its error and retried on a later flush.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.source.FetchPending(ctx, r.cfg.BatchSize, r.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	var (
		sent int
		errs []error
	)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := r.pub.Publish(ctx, rec.Topic, rec.Key, rec.Payload); err != nil {
			r.observe(rec.Topic, "error")
			r.logger.Printf("outbox relay: publish id=%d topic=%s attempt=%d error=%v", rec.ID, rec.Topic, rec.Attempts+1, err)
			errs = append(errs, err)
			if merr := r.source.MarkFailed(ctx, rec.ID, err); merr != nil {
				return sent, errors.Join(append(errs, merr)...)
			}
			continue
		}
		if err := r.source.MarkSent(ctx, rec.ID); err != nil {
			return sent, err
		}
		r.observe(rec.Topic, "ok")
		sent++
	}
	if sent > 0 {
		r.logger.Printf("outbox relay: sent=%d", sent)
	}
	return sent, errors.Join(errs...)
}

func (r *Relay) observe(topic, result string) {
	if r.recorder != nil {
		r.recorder.OutboxPublished(topic, result)
	}
}
