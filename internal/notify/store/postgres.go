package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cvintake/internal/notify/models"
)

// PostgresPersister mirrors persistent notifications into PostgreSQL. The
// save path replaces the full persistent set transactionally so removals
// propagate without tombstones.
type PostgresPersister struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed persister.
func NewPostgres(db *sql.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

// EnsureSchema creates the notifications table when it does not exist yet.
func (p *PostgresPersister) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS notifications (
			id               TEXT PRIMARY KEY,
			title            TEXT NOT NULL,
			message          TEXT NOT NULL,
			type             TEXT NOT NULL,
			priority         TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL,
			read             BOOLEAN NOT NULL DEFAULT FALSE,
			candidate        TEXT NOT NULL DEFAULT '',
			can_hide         BOOLEAN NOT NULL DEFAULT FALSE,
			original_message TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return fmt.Errorf("ensure notifications schema: %w", err)
	}
	return nil
}

// SaveAll replaces the stored persistent set with the given notifications.
func (p *PostgresPersister) SaveAll(ctx context.Context, notifications []models.Notification) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save notifications: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}

	for _, n := range notifications {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications
				(id, title, message, type, priority, created_at, read, candidate, can_hide, original_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			n.ID, n.Title, n.Message, string(n.Type), string(n.Priority),
			n.Timestamp, n.Read, n.Candidate, n.CanHide, n.OriginalMessage,
		)
		if err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save notifications: %w", err)
	}
	return nil
}

// Load returns persisted notifications newer than notBefore, most recent
// first. Retention filtering happens here, at load time only.
func (p *PostgresPersister) Load(ctx context.Context, notBefore time.Time) ([]models.Notification, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, message, type, priority, created_at, read, candidate, can_hide, original_message
		FROM notifications
		WHERE created_at > $1
		ORDER BY created_at DESC`, notBefore)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var typ, prio string
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &typ, &prio,
			&n.Timestamp, &n.Read, &n.Candidate, &n.CanHide, &n.OriginalMessage); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = models.Type(typ)
		n.Priority = models.Priority(prio)
		n.Persistent = true
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
