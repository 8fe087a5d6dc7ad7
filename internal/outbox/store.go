package outbox

import (
	"context"
	"io"
	"log"
	"time"

	"storefront/internal/db"

	"github.com/jackc/pgx/v5/pgconn"
)

// Record is one outbox row awaiting delivery.
type Record struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// Message is what a producer writes into the outbox.
type Message struct {
	EventID string
	Topic   string
	Key     string
	Payload []byte
}

// Execer is satisfied by pgx.Tx so messages commit with the business write.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Enqueue inserts m through ex, normally the open checkout transaction.
func Enqueue(ctx context.Context, ex Execer, m Message) error {
	_, err := ex.Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		m.EventID, m.Topic, m.Key, m.Payload,
	)
	return err
}

type Store struct {
	pool   db.Pool
	logger *log.Logger
}

func NewStore(pool db.Pool, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{pool: pool, logger: logger}
}

// FetchPending returns unsent rows in insertion order, skipping rows that exhausted maxAttempts.
func (s *Store) FetchPending(ctx context.Context, limit, maxAttempts int) ([]Record, error) {
	const q = `
SELECT id, event_id::text, topic, key, payload, attempts, created_at
FROM outbox
WHERE sent_at IS NULL AND attempts < $2
ORDER BY id
LIMIT $1
`
	rows, err := s.pool.Query(ctx, q, limit, maxAttempts)
	if err != nil {
		s.logger.Printf("outbox store: fetch error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET sent_at = now(), attempts = attempts + 1, last_error = NULL WHERE id = $1`, id)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id int64, cause error) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, cause.Error())
	return err
}
