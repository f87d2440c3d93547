package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-valve/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-valve/internal/valve"
	_ "github.com/nerrad567/gray-logic-valve/migrations"
)

func setupTestRepo(t *testing.T, retain int) *Repository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "valve.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	repo := NewRepository(db.DB, retain)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func TestLoadNotFound(t *testing.T) {
	repo := setupTestRepo(t, 0)

	if _, err := repo.Load(context.Background(), "main"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestRecordAndLoad(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	if err := repo.Record(ctx, "main", valve.StateOpening, valve.PositionAt(40), SourceCommand); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := repo.Record(ctx, "main", valve.StateClosed, valve.NoPosition, SourceAPI); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	snap, err := repo.Load(ctx, "main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.State != valve.StateClosed {
		t.Errorf("State = %v, want closed", snap.State)
	}
	if snap.Position.IsSet() {
		t.Errorf("Position = %v, want unset", snap.Position)
	}
	if want := time.Date(2026, 3, 1, 9, 0, 2, 0, time.UTC); !snap.UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", snap.UpdatedAt, want)
	}
}

func TestRecordKeepsPosition(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	if err := repo.Record(ctx, "main", valve.StateOpen, valve.PositionAt(-5), ""); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	snap, err := repo.Load(ctx, "main")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if v, ok := snap.Position.Value(); !ok || v != -5 {
		t.Errorf("Position = %v, want -5", snap.Position)
	}

	entries, err := repo.History(ctx, "main", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Source != SourceCommand {
		t.Errorf("History() = %+v, want one command entry", entries)
	}
}

func TestHistoryOrderAndTrim(t *testing.T) {
	repo := setupTestRepo(t, 3)
	ctx := context.Background()

	states := []valve.State{
		valve.StateOpening, valve.StateOpen, valve.StateClosing, valve.StateClosed, valve.StateOpening,
	}
	for _, s := range states {
		if err := repo.Record(ctx, "main", s, valve.NoPosition, SourceCommand); err != nil {
			t.Fatalf("Record(%v) error = %v", s, err)
		}
	}
	// Another valve's history is not trimmed by main's updates.
	if err := repo.Record(ctx, "other", valve.StateOpen, valve.NoPosition, SourceCommand); err != nil {
		t.Fatalf("Record(other) error = %v", err)
	}

	entries, err := repo.History(ctx, "main", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	want := []valve.State{valve.StateOpening, valve.StateClosed, valve.StateClosing}
	if len(entries) != len(want) {
		t.Fatalf("History() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.State != want[i] {
			t.Errorf("entries[%d].State = %v, want %v", i, e.State, want[i])
		}
		if e.UniqueID != "main" {
			t.Errorf("entries[%d].UniqueID = %q", i, e.UniqueID)
		}
	}
	if !entries[0].RecordedAt.After(entries[1].RecordedAt) {
		t.Error("History() is not newest first")
	}

	other, err := repo.History(ctx, "other", 10)
	if err != nil {
		t.Fatalf("History(other) error = %v", err)
	}
	if len(other) != 1 {
		t.Errorf("History(other) returned %d entries, want 1", len(other))
	}
}

func TestHistoryLimit(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := repo.Record(ctx, "main", valve.StateOpen, valve.NoPosition, SourceCommand); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := repo.History(ctx, "main", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("History(limit 2) returned %d entries", len(entries))
	}
}

func TestEmptyUniqueID(t *testing.T) {
	repo := setupTestRepo(t, 0)
	ctx := context.Background()

	if err := repo.Record(ctx, "", valve.StateOpen, valve.NoPosition, ""); !errors.Is(err, ErrUniqueIDRequired) {
		t.Errorf("Record() error = %v, want ErrUniqueIDRequired", err)
	}
	if _, err := repo.Load(ctx, ""); !errors.Is(err, ErrUniqueIDRequired) {
		t.Errorf("Load() error = %v, want ErrUniqueIDRequired", err)
	}
	if _, err := repo.History(ctx, "", 1); !errors.Is(err, ErrUniqueIDRequired) {
		t.Errorf("History() error = %v, want ErrUniqueIDRequired", err)
	}
}
