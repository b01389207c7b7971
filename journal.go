package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// journal is the durable pending-write store. Every optimistic mutation's
// remote call is recorded here before dispatch and removed on success, so a
// write that fails (or a crash mid-flight) leaves a row that the next session
// load replays against the gateway.
type journal struct {
	db *sql.DB
}

func newJournal(db *sql.DB) *journal {
	return &journal{db: db}
}

// InitTable creates the pending_writes table if needed.
func (j *journal) InitTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS pending_writes (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			body BLOB,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
	`
	_, err := j.db.ExecContext(ctx, query)
	return err
}

// Enqueue records a pending operation. The mutation ID is the primary key, so
// re-enqueueing the same mutation is an upsert, not a duplicate.
func (j *journal) Enqueue(ctx context.Context, op remoteOp) error {
	query := `
		INSERT INTO pending_writes (id, method, path, body, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO UPDATE SET
			method = excluded.method,
			path = excluded.path,
			body = excluded.body
	`
	_, err := j.db.ExecContext(ctx, query, op.ID, op.Method, op.Path, op.Body,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// Complete removes a pending operation after the remote write landed.
func (j *journal) Complete(ctx context.Context, id string) error {
	_, err := j.db.ExecContext(ctx, `DELETE FROM pending_writes WHERE id = ?`, id)
	return err
}

// MarkAttempt bumps the attempt counter for a still-failing operation.
func (j *journal) MarkAttempt(ctx context.Context, id string) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE pending_writes SET attempts = attempts + 1 WHERE id = ?`, id)
	return err
}

// pendingWrite is one journal row.
type pendingWrite struct {
	Op       remoteOp
	Attempts int
}

// Pending returns all surviving operations in enqueue order.
func (j *journal) Pending(ctx context.Context) ([]pendingWrite, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, method, path, body, attempts FROM pending_writes ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []pendingWrite
	for rows.Next() {
		var p pendingWrite
		if err := rows.Scan(&p.Op.ID, &p.Op.Method, &p.Op.Path, &p.Op.Body, &p.Attempts); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// Replay re-issues every surviving operation against the gateway in order.
// Landed writes are removed; failures keep their row with a bumped attempt
// count and do not stop the replay — a later independent write may still land.
// Returns the number of operations still pending afterwards.
func (j *journal) Replay(ctx context.Context, gw gateway) (int, error) {
	pending, err := j.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending writes: %w", err)
	}

	remaining := 0
	for _, p := range pending {
		if err := gw.Do(ctx, p.Op.Method, p.Op.Path, p.Op.Body); err != nil {
			log.Printf("[journal] replay %s %s failed (attempt %d): %v",
				p.Op.Method, p.Op.Path, p.Attempts+1, err)
			if err := j.MarkAttempt(ctx, p.Op.ID); err != nil {
				return remaining, fmt.Errorf("mark attempt: %w", err)
			}
			remaining++
			continue
		}
		if err := j.Complete(ctx, p.Op.ID); err != nil {
			return remaining, fmt.Errorf("complete pending write: %w", err)
		}
	}
	return remaining, nil
}
