package filesystem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.jpg")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !bytes.Equal(data, []byte("first")) {
		t.Errorf("content = %q, want %q", data, "first")
	}

	// Overwrite must replace content wholesale.
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic() overwrite error: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !bytes.Equal(data, []byte("second")) {
		t.Errorf("content after overwrite = %q, want %q", data, "second")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries after writes, want 1", len(entries))
	}
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does", "not", "exist", "blob.jpg")
	if err := WriteFileAtomic(path, []byte("x"), 0o644); err == nil {
		t.Error("WriteFileAtomic() into missing directory succeeded, want error")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"not exist", os.ErrNotExist, false},
		{"estale", syscall.ESTALE, true},
		{"wrapped estale", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"other errno", syscall.ENOENT, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatWithRetryNonStaleFailsFast(t *testing.T) {
	start := time.Now()
	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), fastRetryConfig())
	if err == nil {
		t.Fatal("StatWithRetry() on missing file succeeded, want error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want not-exist", err)
	}
	// A non-ESTALE error must not consume retry backoff.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("StatWithRetry took %v, expected immediate failure", elapsed)
	}
}

func TestReadFileWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	want := []byte("cached bytes")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	got, err := ReadFileWithRetry(path, fastRetryConfig())
	if err != nil {
		t.Fatalf("ReadFileWithRetry() error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestWithRetryRecoversFromStale(t *testing.T) {
	calls := 0
	err := withRetry("stat", "/fake", fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return &os.PathError{Op: "stat", Path: "/fake", Err: syscall.ESTALE}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestWithRetryExhaustsRetries(t *testing.T) {
	calls := 0
	stale := &os.PathError{Op: "stat", Path: "/fake", Err: syscall.ESTALE}
	err := withRetry("stat", "/fake", fastRetryConfig(), func() error {
		calls++
		return stale
	})
	if err == nil {
		t.Fatal("withRetry() succeeded, want error after exhausting retries")
	}
	if calls != 4 { // initial attempt + 3 retries
		t.Errorf("op called %d times, want 4", calls)
	}
}
