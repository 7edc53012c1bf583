package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/devicesim/internal/infrastructure/config"
	"github.com/nerrad567/devicesim/internal/infrastructure/database"
	_ "github.com/nerrad567/devicesim/migrations"
)

// setupJournal opens a migrated journal database in a temp dir.
func setupJournal(t *testing.T) (*SQLiteJournal, *database.DB) {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return NewSQLiteJournal(db.DB), db
}

func TestSQLiteJournal_RecordAndHistory(t *testing.T) {
	j, _ := setupJournal(t)
	ctx := context.Background()

	entries := []Transition{
		{Serial: "LUZ00001", Estado: EstadoInactivo, Powered: false, Parameters: map[string]any{"temperatura": 21.5}, Source: SourceSchedule},
		{Serial: "LUZ00001", Estado: EstadoActivo, Powered: true, Parameters: map[string]any{"temperatura": 22.0}, Source: SourceManual},
		{Serial: "VENT0001", Estado: EstadoActivo, Powered: true},
	}
	for _, e := range entries {
		if err := j.RecordTransition(ctx, e); err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	got, err := j.History(ctx, "LUZ00001", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("History() returned %d entries, want 2", len(got))
	}

	newest := got[0]
	if newest.Estado != EstadoActivo || !newest.Powered || newest.Source != SourceManual {
		t.Errorf("newest = %+v, want the manual activo transition", newest)
	}
	if newest.Parameters["temperatura"] != 22.0 {
		t.Errorf("parameters = %v, want temperatura 22", newest.Parameters)
	}
	if newest.ID <= got[1].ID {
		t.Errorf("entries not newest first: ids %d, %d", newest.ID, got[1].ID)
	}
	if time.Since(newest.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt = %v, want about now", newest.CreatedAt)
	}

	fan, err := j.History(ctx, "VENT0001", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(fan) != 1 || fan[0].Source != SourceTelemetry || len(fan[0].Parameters) != 0 {
		t.Errorf("fan history = %+v, want one telemetry entry with no parameters", fan)
	}
}

func TestSQLiteJournal_HistoryLimit(t *testing.T) {
	j, _ := setupJournal(t)
	ctx := context.Background()

	for range 5 {
		if err := j.RecordTransition(ctx, Transition{Serial: "LUZ00001", Estado: EstadoActivo}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.History(ctx, "LUZ00001", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("History(limit 3) returned %d entries", len(got))
	}
}

func TestSQLiteJournal_RequiresSerial(t *testing.T) {
	j, _ := setupJournal(t)
	ctx := context.Background()

	if err := j.RecordTransition(ctx, Transition{Estado: EstadoActivo}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("RecordTransition() error = %v, want ErrInvalidTransition", err)
	}
	if _, err := j.History(ctx, "", 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("History() error = %v, want ErrInvalidTransition", err)
	}
}

func TestSQLiteJournal_WiredToDevice(t *testing.T) {
	j, _ := setupJournal(t)
	d, _ := newTestDevice(t, "LUZ00001", func(c *Config) { c.Journal = j })

	d.PowerOff()
	d.Tick(context.Background())

	got, err := j.History(context.Background(), "LUZ00001", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 1 || got[0].Estado != EstadoInactivo || got[0].Powered {
		t.Errorf("history = %+v, want one inactivo transition", got)
	}
}

func TestParseJournalTimestamp(t *testing.T) {
	if _, err := parseJournalTimestamp(""); err == nil {
		t.Error("parseJournalTimestamp(\"\") error = nil")
	}
	ts, err := parseJournalTimestamp("2026-10-17T08:00:00Z")
	if err != nil || !ts.Equal(time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("parseJournalTimestamp() = %v, %v", ts, err)
	}
	if _, err := parseJournalTimestamp("yesterday"); err == nil {
		t.Error("parseJournalTimestamp(yesterday) error = nil")
	}
}
