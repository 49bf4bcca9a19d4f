package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/database"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// Repository persists scored opportunities to PostgreSQL. The active
// in-memory store stays authoritative for the query surface; this is
// the durable snapshot collaborators read.
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithField("module", "store"),
	}
}

// EnsureSchema creates the opportunities table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS opportunities (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			type        TEXT NOT NULL,
			title       TEXT NOT NULL,
			score       INTEGER NOT NULL,
			payload     JSONB NOT NULL,
			first_seen  TIMESTAMPTZ NOT NULL,
			last_seen   TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create opportunities table: %w", err)
	}
	return nil
}

// SaveOpportunities batch-upserts a scan cycle's qualifying results
func (r *Repository) SaveOpportunities(ctx context.Context, opportunities []contracts.ScoredOpportunity) error {
	if len(opportunities) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, opp := range opportunities {
		payload, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
		}

		batch.Queue(`
			INSERT INTO opportunities (id, source, type, title, score, payload, first_seen, last_seen)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				score     = EXCLUDED.score,
				payload   = EXCLUDED.payload,
				last_seen = EXCLUDED.last_seen
		`, opp.ID, opp.Source, opp.Type, opp.Title, opp.Score, payload, opp.FirstSeen, opp.LastSeen)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range opportunities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert opportunity: %w", err)
		}
	}

	r.logger.WithField("count", len(opportunities)).Debug("Persisted opportunity batch")
	return nil
}

// DeleteOlderThan removes persisted entries stale beyond maxAge
func (r *Repository) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM opportunities WHERE last_seen < $1`,
		time.Now().Add(-maxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}
