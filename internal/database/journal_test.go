package database

import (
	"context"
	"path/filepath"
	"testing"
)

func setupTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordAndGet(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	if err := j.Record("key-1", "mp4", "https://example.com/a.mp4", 1024); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entry, err := j.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("Get returned nil for recorded key")
	}
	if entry.Extension != "mp4" || entry.SizeBytes != 1024 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.DownloadedAt.IsZero() {
		t.Error("DownloadedAt not set")
	}
}

func TestJournalGetMissing(t *testing.T) {
	j := setupTestJournal(t)

	entry, err := j.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Errorf("Get(absent) = %+v, want nil", entry)
	}
}

func TestJournalRecordUpsert(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	if err := j.Record("key-1", "mp4", "https://example.com/a.mp4", 100); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Record("key-1", "mkv", "https://example.com/a.mkv", 200); err != nil {
		t.Fatalf("Record(update): %v", err)
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d after upsert, want 1", count)
	}

	entry, err := j.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Extension != "mkv" || entry.SizeBytes != 200 {
		t.Errorf("entry after upsert = %+v", entry)
	}
}

func TestJournalDelete(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	if err := j.Record("key-1", "mp4", "u", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := j.Delete("key-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entry, err := j.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry != nil {
		t.Error("entry survived Delete")
	}

	// Deleting a missing key is not an error.
	if err := j.Delete("absent"); err != nil {
		t.Errorf("Delete(absent): %v", err)
	}
}

func TestJournalListAndClear(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := j.Record(key, "mp4", "https://example.com/"+key, 10); err != nil {
			t.Fatalf("Record(%s): %v", key, err)
		}
	}

	entries, err := j.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(entries))
	}

	if err := j.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err = j.List(ctx)
	if err != nil {
		t.Fatalf("List after Clear: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List returned %d entries after Clear, want 0", len(entries))
	}
}
