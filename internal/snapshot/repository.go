package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/valve"
)

// History sources.
const (
	SourceCommand = "command"
	SourceAPI     = "api"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Snapshot is the last state and position published for a valve.
type Snapshot struct {
	UniqueID  string
	State     valve.State
	Position  valve.Position
	UpdatedAt time.Time
}

// Entry is one row of the update history.
type Entry struct {
	ID         int64
	UniqueID   string
	State      valve.State
	Position   valve.Position
	Source     string
	RecordedAt time.Time
}

// Repository reads and writes snapshots and history.
//
// retain bounds the number of history rows kept per valve; zero keeps all.
type Repository struct {
	db     *sql.DB
	retain int
	now    func() time.Time
}

// NewRepository creates a repository over an open, migrated database.
func NewRepository(db *sql.DB, retain int) *Repository {
	return &Repository{db: db, retain: retain, now: time.Now}
}

// Record stores an update: it replaces the snapshot, appends a history row
// and trims the history, all in one transaction.
func (r *Repository) Record(ctx context.Context, uniqueID string, state valve.State, position valve.Position, source string) error {
	if uniqueID == "" {
		return ErrUniqueIDRequired
	}
	if source == "" {
		source = SourceCommand
	}

	ts := r.now().UTC().Format(time.RFC3339Nano)
	pos := nullPosition(position)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO valve_snapshot (unique_id, state, position, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (unique_id) DO UPDATE SET
		     state = excluded.state,
		     position = excluded.position,
		     updated_at = excluded.updated_at`,
		uniqueID, state.String(), pos, ts,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO state_history (unique_id, state, position, source, recorded_at) VALUES (?, ?, ?, ?, ?)",
		uniqueID, state.String(), pos, source, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	if r.retain > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM state_history
			 WHERE unique_id = ? AND id NOT IN (
			     SELECT id FROM state_history WHERE unique_id = ? ORDER BY id DESC LIMIT ?
			 )`,
			uniqueID, uniqueID, r.retain,
		)
		if err != nil {
			return fmt.Errorf("trimming state history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// Load returns the snapshot for a valve, or ErrNotFound.
func (r *Repository) Load(ctx context.Context, uniqueID string) (Snapshot, error) {
	if uniqueID == "" {
		return Snapshot{}, ErrUniqueIDRequired
	}

	var (
		stateToken string
		pos        sql.NullInt16
		updatedAt  string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT state, position, updated_at FROM valve_snapshot WHERE unique_id = ?",
		uniqueID,
	).Scan(&stateToken, &pos, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}

	state, err := valve.ParseState(stateToken)
	if err != nil {
		return Snapshot{}, err
	}
	ts, err := parseTimestamp(updatedAt)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		UniqueID:  uniqueID,
		State:     state,
		Position:  positionFromNull(pos),
		UpdatedAt: ts,
	}, nil
}

// History returns the most recent entries for a valve, newest first.
// limit defaults to 50 and is capped at 200.
func (r *Repository) History(ctx context.Context, uniqueID string, limit int) ([]Entry, error) {
	if uniqueID == "" {
		return nil, ErrUniqueIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, state, position, source, recorded_at
		 FROM state_history
		 WHERE unique_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		uniqueID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			stateToken string
			pos        sql.NullInt16
			recordedAt string
		)
		if err := rows.Scan(&e.ID, &stateToken, &pos, &e.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if e.State, err = valve.ParseState(stateToken); err != nil {
			return nil, err
		}
		if e.RecordedAt, err = parseTimestamp(recordedAt); err != nil {
			return nil, err
		}
		e.UniqueID = uniqueID
		e.Position = positionFromNull(pos)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

func nullPosition(p valve.Position) sql.NullInt16 {
	v, ok := p.Value()
	return sql.NullInt16{Int16: v, Valid: ok}
}

func positionFromNull(n sql.NullInt16) valve.Position {
	if !n.Valid {
		return valve.NoPosition
	}
	return valve.PositionAt(n.Int16)
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return ts, nil
}
