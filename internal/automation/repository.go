package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/device"
)

// Dispatch log page sizes.
const (
	defaultDispatchLimit = 10
	maxDispatchLimit     = 100
)

// timestampLayout is fixed width so TEXT ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository stores dispatch records.
type Repository interface {
	Create(ctx context.Context, rec *DispatchRecord) error
	Complete(ctx context.Context, id string, status DispatchStatus, errMsg string, completedAt time.Time) error
	List(ctx context.Context, module string, limit int) ([]DispatchRecord, error)
}

// SQLiteRepository implements Repository on the dispatch_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new dispatch log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a record. The ID and DispatchedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *DispatchRecord) error {
	if rec.ID == "" {
		rec.ID = GenerateID()
	}
	if rec.DispatchedAt.IsZero() {
		rec.DispatchedAt = time.Now().UTC()
	}

	var completedAt any
	if rec.CompletedAt != nil {
		completedAt = rec.CompletedAt.UTC().Format(timestampLayout)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dispatch_log (id, module, node_id, command, triggered_by, status, error, dispatched_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Module, int(rec.NodeID), string(rec.Command), string(rec.Trigger),
		string(rec.Status), nullableString(rec.Error),
		rec.DispatchedAt.UTC().Format(timestampLayout), completedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch record: %w", err)
	}
	return nil
}

// Complete sets the final status of a pending record.
func (r *SQLiteRepository) Complete(ctx context.Context, id string, status DispatchStatus, errMsg string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dispatch_log SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(status), nullableString(errMsg), completedAt.UTC().Format(timestampLayout), id,
	)
	if err != nil {
		return fmt.Errorf("completing dispatch record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing dispatch record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("completing dispatch record %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// List returns the most recent records for module, newest first.
// limit defaults to 10 and is capped at 100.
func (r *SQLiteRepository) List(ctx context.Context, module string, limit int) ([]DispatchRecord, error) {
	if limit <= 0 {
		limit = defaultDispatchLimit
	}
	if limit > maxDispatchLimit {
		limit = maxDispatchLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, module, node_id, command, triggered_by, status, error, dispatched_at, completed_at
		 FROM dispatch_log WHERE module = ? ORDER BY dispatched_at DESC LIMIT ?`,
		module, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch log: %w", err)
	}
	defer rows.Close()

	records := []DispatchRecord{}
	for rows.Next() {
		var (
			rec          DispatchRecord
			nodeID       int
			command      string
			trigger      string
			status       string
			errMsg       sql.NullString
			dispatchedAt string
			completedAt  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Module, &nodeID, &command, &trigger,
			&status, &errMsg, &dispatchedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning dispatch record: %w", err)
		}

		rec.NodeID = device.NodeID(nodeID)
		rec.Command = device.CommandState(command)
		rec.Trigger = Trigger(trigger)
		rec.Status = DispatchStatus(status)
		rec.Error = errMsg.String

		if rec.DispatchedAt, err = time.Parse(time.RFC3339Nano, dispatchedAt); err != nil {
			return nil, fmt.Errorf("parsing dispatch timestamp %q: %w", dispatchedAt, err)
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, completedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing completion timestamp %q: %w", completedAt.String, err)
			}
			rec.CompletedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch log: %w", err)
	}
	return records, nil
}

// nullableString returns nil for empty strings so nullable TEXT columns
// stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
