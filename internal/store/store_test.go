package store

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/grindpulse/grindsync/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "grindsync.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	return db
}

func TestSaveLoadSetProgress(t *testing.T) {
	db := testDB(t)
	items := []model.UserProgress{
		{Name: "Two Sum", Solved: true, TimeToSolve: "12", Comments: "map", SolvedDate: "2026-01-15"},
		{Name: "3Sum"},
	}

	if err := db.SaveSetProgress("blind75", items); err != nil {
		t.Fatalf("SaveSetProgress: %v", err)
	}

	got, err := db.LoadSetProgress("blind75")
	if err != nil {
		t.Fatalf("LoadSetProgress: %v", err)
	}
	if len(got) != 2 || got[0] != items[0] || got[1] != items[1] {
		t.Errorf("loaded %+v, want %+v", got, items)
	}
}

func TestSaveSetProgressOverwrites(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSetProgress("blind75", []model.UserProgress{{Name: "Two Sum", Solved: true}}); err != nil {
		t.Fatalf("SaveSetProgress: %v", err)
	}
	if err := db.SaveSetProgress("blind75", []model.UserProgress{{Name: "Two Sum"}}); err != nil {
		t.Fatalf("SaveSetProgress: %v", err)
	}

	got, err := db.LoadSetProgress("blind75")
	if err != nil {
		t.Fatalf("LoadSetProgress: %v", err)
	}
	if len(got) != 1 || got[0].Solved {
		t.Errorf("second save should fully replace the first: %+v", got)
	}
}

func TestLoadSetProgressMissing(t *testing.T) {
	db := testDB(t)
	got, err := db.LoadSetProgress("never-saved")
	if err != nil {
		t.Fatalf("LoadSetProgress: %v", err)
	}
	if got != nil {
		t.Errorf("missing set should load as nil, got %+v", got)
	}
}

func TestLoadSetProgressCorruptPayload(t *testing.T) {
	db := testDB(t)
	_, err := db.conn.Exec(
		"INSERT INTO set_progress (set_key, payload, saved_at) VALUES (?, ?, ?)",
		"blind75", "{not json", "2026-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	got, err := db.LoadSetProgress("blind75")
	if err != nil {
		t.Fatalf("corrupt payload must not error: %v", err)
	}
	if got != nil {
		t.Errorf("corrupt payload should load as nil, got %+v", got)
	}
}

func TestLoadIntoIsAdditive(t *testing.T) {
	db := testDB(t)
	if err := db.SaveSetProgress("blind75", []model.UserProgress{
		{Name: "Two Sum", Solved: true, SolvedDate: "2026-01-15"},
		{Name: "Removed Problem", Solved: true},
	}); err != nil {
		t.Fatalf("SaveSetProgress: %v", err)
	}

	sets := []*model.ProblemSet{{Key: "blind75", Problems: []*model.Problem{
		{Name: "Two Sum"},
		{Name: "3Sum"},
	}}}
	if err := db.LoadInto(context.Background(), sets); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	if p := sets[0].Find("Two Sum"); !p.Solved || p.SolvedDate != "2026-01-15" {
		t.Errorf("saved progress not merged: %+v", p)
	}
	if p := sets[0].Find("3Sum"); p.Solved {
		t.Error("problem without a saved record should keep defaults")
	}
	if len(sets[0].Problems) != 2 {
		t.Error("load must never add or remove in-memory problems")
	}
}

func TestConfigDocRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	payload := json.RawMessage(`{"theme":"dark","sort":{"blind75":"difficulty"}}`)
	if err := db.SaveConfigDoc(ctx, "uiPrefs", payload); err != nil {
		t.Fatalf("SaveConfigDoc: %v", err)
	}

	got, err := db.LoadConfigDoc(ctx, "uiPrefs")
	if err != nil {
		t.Fatalf("LoadConfigDoc: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("loaded %s, want %s", got, payload)
	}

	if got, err := db.LoadConfigDoc(ctx, "filters"); err != nil || got != nil {
		t.Errorf("absent doc = (%s, %v), want (nil, nil)", got, err)
	}
}

func TestSyncMeta(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if v, err := db.GetMeta(ctx, "lastSync"); err != nil || v != "" {
		t.Errorf("unset meta = (%q, %v), want empty", v, err)
	}
	if err := db.SetMeta(ctx, "lastSync", "2026-08-01T00:00:00Z"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := db.SetMeta(ctx, "lastSync", "2026-08-02T00:00:00Z"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}
	if v, _ := db.GetMeta(ctx, "lastSync"); v != "2026-08-02T00:00:00Z" {
		t.Errorf("meta = %q, want the overwritten value", v)
	}
}

func TestBackupLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	items := []model.UserProgress{{Name: "Two Sum", Solved: true}}

	id, err := db.SaveBackup(ctx, "blind75", items)
	if err != nil {
		t.Fatalf("SaveBackup: %v", err)
	}

	b, err := db.LatestBackup(ctx, "blind75", time.Now())
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}
	if b == nil || b.ID != id || len(b.Items) != 1 || b.Items[0].Name != "Two Sum" {
		t.Fatalf("latest backup = %+v", b)
	}

	if err := db.DeleteBackup(ctx, id); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	if b, _ := db.LatestBackup(ctx, "blind75", time.Now()); b != nil {
		t.Error("deleted backup still returned")
	}
}

func TestBackupExpires(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.SaveBackup(ctx, "blind75", []model.UserProgress{{Name: "Two Sum"}}); err != nil {
		t.Fatalf("SaveBackup: %v", err)
	}

	// Well past the expiry window the backup is no longer recoverable.
	future := time.Now().Add(BackupExpiry + time.Minute)
	b, err := db.LatestBackup(ctx, "blind75", future)
	if err != nil {
		t.Fatalf("LatestBackup: %v", err)
	}
	if b != nil {
		t.Error("expired backup should not be recoverable")
	}
}
