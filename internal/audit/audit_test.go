package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"salescomposer/internal/domain"
)

func appendN(t *testing.T, log *FileLog, base time.Time, ids ...string) {
	t.Helper()
	for i, id := range ids {
		err := log.Append(context.Background(), domain.AuditEntry{
			ID:           id,
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
			SnippetsUsed: []string{"BEN001"},
		})
		if err != nil {
			t.Fatalf("Append %s: %v", id, err)
		}
	}
}

func entryIDs(entries []domain.AuditEntry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestFileLogRecentNewestFirst(t *testing.T) {
	log := NewFileLog(filepath.Join(t.TempDir(), "logs", "audit.jsonl"))
	ctx := context.Background()

	empty, err := log.Recent(ctx, 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("missing file should be empty, got %v, %v", empty, err)
	}

	appendN(t, log, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), "a", "b", "c", "d")
	got, err := log.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff([]string{"d", "c", "b"}, entryIDs(got)); diff != "" {
		t.Fatalf("recent mismatch (-want +got):\n%s", diff)
	}
}

func TestFileLogSkipsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log := NewFileLog(path)
	appendN(t, log, time.Now(), "ok")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"id":"trunc`)
	f.Close()

	got, err := log.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff([]string{"ok"}, entryIDs(got)); diff != "" {
		t.Fatalf("recent mismatch (-want +got):\n%s", diff)
	}
}

func TestPruneOnce(t *testing.T) {
	log := NewFileLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	appendN(t, log, base, "old1", "old2", "new")

	removed, err := PruneOnce(context.Background(), log, time.Hour, base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("PruneOnce: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	left, _ := log.Recent(context.Background(), 10)
	if diff := cmp.Diff([]string{"new"}, entryIDs(left)); diff != "" {
		t.Fatalf("survivors mismatch (-want +got):\n%s", diff)
	}
}

func TestStartRetentionValidation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := NewFileLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	if err := StartRetention(ctx, RetentionConfig{}, log, zap.NewNop()); err != nil {
		t.Fatalf("disabled retention should not error: %v", err)
	}
	if err := StartRetention(ctx, RetentionConfig{Schedule: "not a cron", Keep: time.Hour}, log, zap.NewNop()); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := StartRetention(ctx, RetentionConfig{Schedule: "0 3 * * *", Keep: 24 * time.Hour}, log, zap.NewNop()); err != nil {
		t.Fatalf("StartRetention: %v", err)
	}
}
