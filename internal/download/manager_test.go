package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-cache/internal/media"
)

type testItem struct {
	key     string
	kind    media.Kind
	url     string
	resolve func(ctx context.Context) (string, error)
}

func (i *testItem) CacheKey() string     { return i.key }
func (i *testItem) MediaKind() media.Kind { return i.kind }
func (i *testItem) SourceURL() string    { return i.url }

func (i *testItem) ResolveURL(ctx context.Context) (string, error) {
	if i.resolve != nil {
		return i.resolve(ctx)
	}
	return i.url, nil
}

func newTestManager(t *testing.T, headers HeaderProvider, journal Journal) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), nil, headers, journal)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func videoItem(key, url string) *testItem {
	return &testItem{key: key, kind: media.KindVideo, url: url}
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if m.Status().State == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state = %s, want %s after wait", m.Status().State, want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCanCache(t *testing.T) {
	m := newTestManager(t, nil, nil)

	tests := []struct {
		name string
		item *testItem
		want bool
	}{
		{"video with key", &testItem{key: "k1", kind: media.KindVideo}, true},
		{"audio with key", &testItem{key: "k2", kind: media.KindAudio}, true},
		{"image", &testItem{key: "k3", kind: media.KindImage}, false},
		{"animated image", &testItem{key: "k4", kind: media.KindAnimatedImage}, false},
		{"video without key", &testItem{key: "", kind: media.KindVideo}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.CanCache(tt.item); got != tt.want {
				t.Errorf("CanCache() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocalPathExtension(t *testing.T) {
	m := newTestManager(t, nil, nil)

	tests := []struct {
		name    string
		item    *testItem
		wantExt string
	}{
		{"extension from url", &testItem{key: "a", kind: media.KindVideo, url: "https://example.com/movie.MKV"}, ".mkv"},
		{"video fallback", &testItem{key: "b", kind: media.KindVideo, url: ""}, ".mp4"},
		{"audio fallback", &testItem{key: "c", kind: media.KindAudio, url: ""}, ".mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := m.LocalPath(tt.item)
			if !ok {
				t.Fatal("LocalPath not ok for cacheable item")
			}
			if got := filepath.Ext(path); got != tt.wantExt {
				t.Errorf("extension = %s, want %s", got, tt.wantExt)
			}
		})
	}

	if _, ok := m.LocalPath(&testItem{key: "d", kind: media.KindImage}); ok {
		t.Error("LocalPath ok for non-cacheable item")
	}
}

func TestDownloadAllBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload-" + r.URL.Path))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	items := []media.Item{
		videoItem("item-1", srv.URL+"/one.mp4"),
		videoItem("item-2", srv.URL+"/two.mp4"),
		videoItem("item-3", srv.URL+"/three.mp4"),
	}

	m.DownloadAll(items)
	m.Wait()

	status := m.Status()
	if status.State != StateCompleted {
		t.Fatalf("state = %s, want %s", status.State, StateCompleted)
	}
	if status.Progress.Completed != 3 || status.Progress.Total != 3 {
		t.Errorf("progress = %+v, want 3/3", status.Progress)
	}
	for _, item := range items {
		if !m.IsCached(item) {
			t.Errorf("%s not cached after batch", item.CacheKey())
		}
	}

	data, err := os.ReadFile(filepath.Join(m.Directory(), "item-1.mp4"))
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "payload-/one.mp4" {
		t.Errorf("downloaded content = %q", data)
	}
}

func TestDownloadAllContinuesPastFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/two.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	one := videoItem("item-1", srv.URL+"/one.mp4")
	two := videoItem("item-2", srv.URL+"/two.mp4")
	three := videoItem("item-3", srv.URL+"/three.mp4")

	m.DownloadAll([]media.Item{one, two, three})
	m.Wait()

	status := m.Status()
	if status.State != StateCompleted {
		t.Fatalf("state = %s, want %s", status.State, StateCompleted)
	}
	if status.Progress.Completed != 2 {
		t.Errorf("completed = %d, want 2", status.Progress.Completed)
	}
	if !m.IsCached(one) || !m.IsCached(three) {
		t.Error("surviving items missing after partial failure")
	}
	if m.IsCached(two) {
		t.Error("failed item present on disk")
	}
}

func TestDownloadAllAllFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	m.DownloadAll([]media.Item{videoItem("item-1", srv.URL+"/a.mp4")})
	m.Wait()

	status := m.Status()
	if status.State != StateFailed {
		t.Fatalf("state = %s, want %s", status.State, StateFailed)
	}
	if status.Reason == "" {
		t.Error("failed state carries no reason")
	}
}

func TestDownloadAllConcurrentNoop(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	m.DownloadAll([]media.Item{videoItem("item-1", srv.URL+"/a.mp4")})
	waitForState(t, m, StateDownloading)

	// A second request while downloading must not alter the batch.
	m.DownloadAll([]media.Item{
		videoItem("item-2", srv.URL+"/b.mp4"),
		videoItem("item-3", srv.URL+"/c.mp4"),
	})

	status := m.Status()
	if status.State != StateDownloading || status.Progress.Total != 1 {
		t.Errorf("status after concurrent call = %+v, want downloading 0/1", status)
	}

	close(release)
	m.Wait()

	if m.IsCached(videoItem("item-2", srv.URL+"/b.mp4")) {
		t.Error("ignored batch's item was downloaded")
	}
}

func TestCancelMidBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.mp4" {
			// Hold the transfer open until the client gives up.
			<-r.Context().Done()
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	fast := videoItem("item-fast", srv.URL+"/fast.mp4")
	slow := videoItem("item-slow", srv.URL+"/slow.mp4")

	m.DownloadAll([]media.Item{fast, slow})

	// Wait for the first item to land so cancellation hits mid-batch.
	deadline := time.After(5 * time.Second)
	for !m.IsCached(fast) {
		select {
		case <-deadline:
			t.Fatal("first item never downloaded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m.Cancel()
	m.Wait()

	status := m.Status()
	if status.State != StateCancelled {
		t.Fatalf("state = %s, want %s", status.State, StateCancelled)
	}
	if status.Progress != (Progress{}) {
		t.Errorf("progress = %+v, want cleared", status.Progress)
	}
	// Completed items survive cancellation.
	if !m.IsCached(fast) {
		t.Error("earlier completed download removed by cancellation")
	}
	if m.IsCached(slow) {
		t.Error("cancelled download left a file behind")
	}
}

func TestDownloadFileIdempotent(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	item := videoItem("item-1", srv.URL+"/a.mp4")

	path, _ := m.LocalPath(item)
	if err := os.WriteFile(path, []byte("existing"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	if err := m.DownloadFile(context.Background(), item); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Errorf("server hit %d times for an already-cached item, want 0", hits)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "existing" {
		t.Error("existing file was overwritten")
	}
}

func TestDownloadResolvesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	item := &testItem{
		key:  "item-r",
		kind: media.KindVideo,
		resolve: func(ctx context.Context) (string, error) {
			return srv.URL + "/resolved", nil
		},
	}

	if err := m.DownloadFile(context.Background(), item); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	// Extension falls back to the media kind when the URL has none.
	if _, err := os.Stat(filepath.Join(m.Directory(), "item-r.mp4")); err != nil {
		t.Errorf("resolved download missing: %v", err)
	}
}

func TestDownloadSendsHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	headers := NewStaticHeaderProvider("Authorization: Bearer token123")
	m := newTestManager(t, headers, nil)

	if err := m.DownloadFile(context.Background(), videoItem("item-1", srv.URL+"/a.mp4")); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if got != "Bearer token123" {
		t.Errorf("Authorization header = %q, want bearer token", got)
	}
}

func TestClearResetsToIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	one := videoItem("item-1", srv.URL+"/a.mp4")
	two := videoItem("item-2", srv.URL+"/b.mp4")

	m.DownloadAll([]media.Item{one, two})
	m.Wait()
	waitForState(t, m, StateCompleted)

	if err := m.Clear([]media.Item{one}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	// One file remains, so the state machine stays put.
	if got := m.Status().State; got != StateCompleted {
		t.Errorf("state after partial clear = %s, want %s", got, StateCompleted)
	}

	if err := m.Clear([]media.Item{two}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("state after clearing last file = %s, want %s", got, StateIdle)
	}
}

func TestClearAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := newTestManager(t, nil, nil)
	items := []media.Item{
		videoItem("item-1", srv.URL+"/a.mp4"),
		videoItem("item-2", srv.URL+"/b.mp4"),
	}
	m.DownloadAll(items)
	m.Wait()

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	for _, item := range items {
		if m.IsCached(item) {
			t.Errorf("%s survived ClearAll", item.CacheKey())
		}
	}
	if got := m.Status().State; got != StateIdle {
		t.Errorf("state after ClearAll = %s, want %s", got, StateIdle)
	}
	if got := m.DownloadedBytes(); got != 0 {
		t.Errorf("DownloadedBytes() = %d after ClearAll, want 0", got)
	}
}

type recordingJournal struct {
	mu      sync.Mutex
	records []string
	deletes []string
	cleared bool
}

func (j *recordingJournal) Record(key, ext, url string, size int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, key)
	return nil
}

func (j *recordingJournal) Delete(key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deletes = append(j.deletes, key)
	return nil
}

func (j *recordingJournal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cleared = true
	return nil
}

func TestJournalRecording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	journal := &recordingJournal{}
	m := newTestManager(t, nil, journal)
	item := videoItem("item-1", srv.URL+"/a.mp4")

	m.DownloadAll([]media.Item{item})
	m.Wait()

	journal.mu.Lock()
	records := len(journal.records)
	journal.mu.Unlock()
	if records != 1 {
		t.Fatalf("journal records = %d, want 1", records)
	}

	if err := m.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if !journal.cleared {
		t.Error("journal not cleared by ClearAll")
	}
}

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{0, 0}, 0},
		{Progress{0, 4}, 0},
		{Progress{1, 4}, 0.25},
		{Progress{4, 4}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("Fraction(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestStaticHeaderProvider(t *testing.T) {
	if p := NewStaticHeaderProvider(""); p != nil {
		t.Error("empty input yielded a provider")
	}
	if p := NewStaticHeaderProvider("garbage"); p != nil {
		t.Error("malformed input yielded a provider")
	}

	p := NewStaticHeaderProvider("Authorization: Bearer x\nX-Custom: y")
	h := p.Headers("https://example.com")
	if h.Get("Authorization") != "Bearer x" || h.Get("X-Custom") != "y" {
		t.Errorf("parsed headers = %v", h)
	}
}
