// Package store persists the threat watchlist: the ranked scores of the most
// recent scoring cycle, queryable by the CLI and the surrounding API layer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atis-project/atis/internal/models"
)

const ddl = `
CREATE TABLE IF NOT EXISTS watchlist (
	object_id    TEXT PRIMARY KEY,
	threat_score REAL NOT NULL,
	latent_risk  REAL NOT NULL,
	uncertainty  REAL NOT NULL,
	proximity    REAL NOT NULL,
	size_proxy   REAL NOT NULL,
	scored_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_watchlist_score ON watchlist (threat_score DESC);
`

// Watchlist is a sqlite-backed score store. Safe for concurrent use.
type Watchlist struct {
	db *sql.DB
}

// Open opens (creating if needed) the watchlist database at path.
func Open(path string) (*Watchlist, error) {
	if path == "" {
		return nil, fmt.Errorf("watchlist path not specified")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist db %s: %w", path, err)
	}
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create watchlist schema: %w", err)
	}
	return &Watchlist{db: db}, nil
}

// Replace swaps the stored watchlist for a fresh scoring cycle's output in
// one transaction.
func (w *Watchlist) Replace(ctx context.Context, scores []models.ThreatBreakdown) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watchlist tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM watchlist"); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watchlist
			(object_id, threat_score, latent_risk, uncertainty, proximity, size_proxy, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare watchlist insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range scores {
		if _, err := stmt.ExecContext(ctx,
			s.ObjectID, s.Combined, s.LatentRisk, s.Uncertainty, s.Proximity, s.SizeProxy, now,
		); err != nil {
			return fmt.Errorf("insert watchlist row %s: %w", s.ObjectID, err)
		}
	}

	return tx.Commit()
}

// Top returns the n highest-scoring objects, best first.
func (w *Watchlist) Top(ctx context.Context, n int) ([]models.ThreatBreakdown, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT object_id, threat_score, latent_risk, uncertainty, proximity, size_proxy
		FROM watchlist ORDER BY threat_score DESC, object_id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []models.ThreatBreakdown
	for rows.Next() {
		var s models.ThreatBreakdown
		if err := rows.Scan(&s.ObjectID, &s.Combined, &s.LatentRisk,
			&s.Uncertainty, &s.Proximity, &s.SizeProxy); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns the stored score for one object.
func (w *Watchlist) Get(ctx context.Context, objectID string) (models.ThreatBreakdown, error) {
	var s models.ThreatBreakdown
	err := w.db.QueryRowContext(ctx, `
		SELECT object_id, threat_score, latent_risk, uncertainty, proximity, size_proxy
		FROM watchlist WHERE object_id = ?`, objectID).
		Scan(&s.ObjectID, &s.Combined, &s.LatentRisk, &s.Uncertainty, &s.Proximity, &s.SizeProxy)
	if err == sql.ErrNoRows {
		return s, fmt.Errorf("object %q not on watchlist", objectID)
	}
	if err != nil {
		return s, fmt.Errorf("query watchlist for %s: %w", objectID, err)
	}
	return s, nil
}

// Close releases the database handle.
func (w *Watchlist) Close() error {
	return w.db.Close()
}
