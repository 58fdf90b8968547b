package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS publish_failures (
	message_id  TEXT PRIMARY KEY,
	signature   TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	reason      TEXT NOT NULL,
	error       TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	event       JSONB NOT NULL,
	failed_at   TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store provides Postgres persistence for the publish failure ledger.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the failure table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create publish_failures: %w", err)
	}
	return nil
}

// PutFailureBatch records failures. A message already recorded is replaced by its latest failure.
func (s *Store) PutFailureBatch(ctx context.Context, failures []model.FailedEvent) error {
	if len(failures) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range failures {
		event, err := jsoncodec.Marshal(f.Event)
		if err != nil {
			return fmt.Errorf("marshal failed event %s: %w", f.MessageID, err)
		}
		batch.Queue(`
			INSERT INTO publish_failures (
				message_id, signature, event_type, reason, error, attempts, event, failed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (message_id) DO UPDATE SET
				reason = EXCLUDED.reason,
				error = EXCLUDED.error,
				attempts = EXCLUDED.attempts,
				failed_at = EXCLUDED.failed_at
		`,
			f.MessageID,
			f.Event.Signature(),
			f.Event.EventType,
			f.Reason,
			f.Error,
			f.Attempts,
			string(event),
			f.FailedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range failures {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadFailures returns recorded failures oldest first.
func (s *Store) LoadFailures(ctx context.Context) ([]model.FailedEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, reason, error, attempts, event::text, failed_at
		FROM publish_failures
		ORDER BY failed_at, message_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailedEvent
	for rows.Next() {
		var (
			f     model.FailedEvent
			event string
		)
		if err := rows.Scan(&f.MessageID, &f.Reason, &f.Error, &f.Attempts, &event, &f.FailedAt); err != nil {
			return nil, err
		}
		if err := jsoncodec.Unmarshal([]byte(event), &f.Event); err != nil {
			return nil, fmt.Errorf("decode failed event %s: %w", f.MessageID, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// PurgeFailures removes replayed failures by message id.
func (s *Store) PurgeFailures(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM publish_failures WHERE message_id = ANY($1)`, messageIDs)
	return err
}
