package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// Pass is one row of the sync history.
type Pass struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	OK         bool
	Pulled     int64
	Pushed     int64
	Created    int64
	Failed     int64
	Error      string
}

func (p Pass) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}

const insertPass = `
INSERT INTO sync_history (started_at, finished_at, source, ok, pulled, pushed, created, failed, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

func (q *Queries) InsertPass(ctx context.Context, p Pass) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(
		ctx, insertPass,
		p.StartedAt.UnixMilli(), p.FinishedAt.UnixMilli(), p.Source, p.OK,
		p.Pulled, p.Pushed, p.Created, p.Failed, p.Error,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("could not insert sync pass: %w", err)
	}
	return id, nil
}

const lastPasses = `
SELECT id, started_at, finished_at, source, ok, pulled, pushed, created, failed, error
FROM sync_history
ORDER BY started_at DESC, id DESC
LIMIT ?
`

// LastPasses returns up to limit passes, newest first.
func (q *Queries) LastPasses(ctx context.Context, limit int) ([]Pass, error) {
	rows, err := q.db.QueryContext(ctx, lastPasses, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query sync history: %w", err)
	}
	defer rows.Close()

	var passes []Pass
	for rows.Next() {
		var (
			p                 Pass
			started, finished int64
		)
		if err = rows.Scan(
			&p.ID, &started, &finished, &p.Source, &p.OK,
			&p.Pulled, &p.Pushed, &p.Created, &p.Failed, &p.Error,
		); err != nil {
			return nil, fmt.Errorf("could not scan sync pass: %w", err)
		}
		p.StartedAt = time.UnixMilli(started)
		p.FinishedAt = time.UnixMilli(finished)
		passes = append(passes, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read sync history: %w", err)
	}
	return passes, nil
}

const pruneHistory = `
DELETE FROM sync_history
WHERE id NOT IN (SELECT id FROM sync_history ORDER BY started_at DESC, id DESC LIMIT ?)
`

// PruneHistory keeps the newest keep passes and deletes the rest.
func (q *Queries) PruneHistory(ctx context.Context, keep int) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneHistory, keep)
	if err != nil {
		return 0, fmt.Errorf("could not prune sync history: %w", err)
	}
	return res.RowsAffected()
}
