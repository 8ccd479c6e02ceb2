// Package feedback persists labeled prediction outcomes to Postgres. The
// sink is optional: the service runs without it and the drift monitor just
// starts cold.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scamdunk/scamguard/pkg/config"
	"github.com/scamdunk/scamguard/pkg/logging"
)

// Sample is one labeled prediction outcome reported by a user or reviewer.
type Sample struct {
	PredictedScore float64   `json:"predicted_score"`
	ActualLabel    int       `json:"actual_label"`
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store writes and reads feedback samples via a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS feedback_samples (
	id               BIGSERIAL PRIMARY KEY,
	predicted_score  DOUBLE PRECISION NOT NULL,
	actual_label     SMALLINT NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// New connects, pings and ensures the schema. Callers should skip the sink
// entirely when no DSN is configured.
func New(ctx context.Context, cfg config.PostgresConfig, log *logging.Logger) (*Store, error) {
	log = log.WithComponent("feedback_store")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure feedback schema: %w", err)
	}

	log.Info().Msg("connected to postgres")
	return &Store{pool: pool, log: log}, nil
}

// Record inserts one sample. A zero CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, sample Sample) error {
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO feedback_samples (predicted_score, actual_label, confidence, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query,
		sample.PredictedScore, sample.ActualLabel, sample.Confidence, sample.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

// Recent returns up to limit samples in chronological order, oldest first,
// suitable for replaying into the drift monitor at startup.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sample, error) {
	query := `
		SELECT predicted_score, actual_label, confidence, created_at
		FROM feedback_samples
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.PredictedScore, &sm.ActualLabel, &sm.Confidence, &sm.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feedback rows: %w", err)
	}

	// Reverse the newest-first query result.
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// Stats exposes pool statistics for the metrics endpoint.
func (s *Store) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.log.Info().Msg("closing feedback store")
	s.pool.Close()
}
