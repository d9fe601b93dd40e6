package packages_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/justapithecus/rayjob/dashboard"
	"github.com/justapithecus/rayjob/dashboard/dashboardtest"
	"github.com/justapithecus/rayjob/metrics"
	"github.com/justapithecus/rayjob/packages"
	"github.com/justapithecus/rayjob/types"
)

var packageURIRegex = regexp.MustCompile(`^gcs://_ray_pkg_[0-9a-f]{40}\.zip$`)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not empty: %v", entries)
	}
}

func newDashboardCoordinator(t *testing.T) (*packages.Coordinator, *dashboardtest.Server, *metrics.Collector, string) {
	t.Helper()
	srv := dashboardtest.New(t)
	client, err := dashboard.New(srv.URL)
	if err != nil {
		t.Fatalf("dashboard.New: %v", err)
	}
	m := metrics.NewCollector(srv.URL, "dashboard")
	tmp := t.TempDir()
	return packages.NewCoordinator(client, packages.WithMetrics(m), packages.WithTempDir(tmp)), srv, m, tmp
}

func TestUploadIfNeeded_ExactlyOnePut(t *testing.T) {
	coord, srv, m, _ := newDashboardCoordinator(t)
	ctx := t.Context()
	uri := "gcs://_ray_pkg_0123456789abcdef0123456789abcdef01234567.zip"

	uploaded, err := coord.UploadIfNeeded(ctx, uri, []byte("zip"))
	if err != nil || !uploaded {
		t.Fatalf("first UploadIfNeeded = %v, %v", uploaded, err)
	}
	uploaded, err = coord.UploadIfNeeded(ctx, uri, []byte("zip"))
	if err != nil || uploaded {
		t.Fatalf("second UploadIfNeeded = %v, %v", uploaded, err)
	}

	if got := srv.PutCount(); got != 1 {
		t.Errorf("PUT count = %d, want 1", got)
	}
	exists, err := coord.Exists(ctx, uri)
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}

	s := m.Snapshot()
	if s.UploadsPerformed != 1 || s.UploadsSkipped != 1 || s.BytesUploaded != 3 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestExists_InvalidURI(t *testing.T) {
	coord, srv, _, _ := newDashboardCoordinator(t)

	_, err := coord.Exists(t.Context(), "not-a-uri")
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("err = %v, want validation kind", err)
	}
	if srv.PutCount() != 0 {
		t.Error("unexpected upload")
	}
}

func TestExists_TransportErrorPropagates(t *testing.T) {
	coord, srv, m, _ := newDashboardCoordinator(t)
	srv.FailWith(500)

	_, err := coord.Exists(t.Context(), "gcs://x.zip")
	if !errors.Is(err, types.ErrTransport) {
		t.Fatalf("err = %v, want transport kind", err)
	}
	if m.Snapshot().UploadsFailed != 1 {
		t.Error("failure not counted")
	}
}

func TestUploadDirectoryIfNeeded(t *testing.T) {
	coord, srv, _, tmp := newDashboardCoordinator(t)
	dir := writeTree(t, map[string]string{"file1.txt": "content1", "file2.txt": "content2"})
	ctx := t.Context()

	uri, err := coord.UploadDirectoryIfNeeded(ctx, dir)
	if err != nil {
		t.Fatalf("UploadDirectoryIfNeeded: %v", err)
	}
	if !packageURIRegex.MatchString(uri) {
		t.Errorf("uri = %s", uri)
	}

	again, err := coord.UploadDirectoryIfNeeded(ctx, dir)
	if err != nil {
		t.Fatalf("second UploadDirectoryIfNeeded: %v", err)
	}
	if again != uri {
		t.Errorf("uri changed: %s vs %s", uri, again)
	}
	if srv.PutCount() != 1 {
		t.Errorf("PUT count = %d, want 1", srv.PutCount())
	}

	data, ok := srv.Package("gcs", uri[len("gcs://"):])
	if !ok || len(data) == 0 {
		t.Fatal("archive not stored")
	}
	if string(data[:2]) != "PK" {
		t.Errorf("stored bytes are not a zip archive")
	}
	assertEmptyDir(t, tmp)
}

func TestUploadDirectory_AlwaysUploads(t *testing.T) {
	coord, srv, _, tmp := newDashboardCoordinator(t)
	dir := writeTree(t, map[string]string{"main.py": "print(1)"})

	for range 2 {
		if _, err := coord.UploadDirectory(t.Context(), dir); err != nil {
			t.Fatalf("UploadDirectory: %v", err)
		}
	}
	if srv.PutCount() != 2 {
		t.Errorf("PUT count = %d, want 2", srv.PutCount())
	}
	assertEmptyDir(t, tmp)
}

func TestUploadPackageFile_Wheel(t *testing.T) {
	coord, srv, _, _ := newDashboardCoordinator(t)
	wheel := filepath.Join(t.TempDir(), "lib-0.1-py3-none-any.whl")
	if err := os.WriteFile(wheel, []byte("wheel"), 0o644); err != nil {
		t.Fatal(err)
	}

	uri, err := coord.UploadPackageFile(t.Context(), wheel)
	if err != nil {
		t.Fatalf("UploadPackageFile: %v", err)
	}
	if uri != "gcs://lib-0.1-py3-none-any.whl" {
		t.Errorf("uri = %s", uri)
	}
	if data, ok := srv.Package("gcs", "lib-0.1-py3-none-any.whl"); !ok || string(data) != "wheel" {
		t.Errorf("stored = %v %q", ok, data)
	}
}

// failingStore reports every package absent and rejects uploads.
type failingStore struct {
	mu   sync.Mutex
	puts int
}

func (s *failingStore) Exists(context.Context, string, string) (bool, error) { return false, nil }

func (s *failingStore) Put(context.Context, string, string, []byte) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return errors.New("bucket on fire")
}

func TestUploadDirectoryIfNeeded_CleansUpOnUploadFailure(t *testing.T) {
	store := &failingStore{}
	tmp := t.TempDir()
	coord := packages.NewCoordinator(store, packages.WithTempDir(tmp))
	dir := writeTree(t, map[string]string{"a.txt": "a"})

	if _, err := coord.UploadDirectoryIfNeeded(t.Context(), dir); err == nil {
		t.Fatal("expected upload error")
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1 (no retries)", store.puts)
	}
	assertEmptyDir(t, tmp)
}

func TestUploadDirectoryIfNeeded_MissingDirectory(t *testing.T) {
	tmp := t.TempDir()
	coord := packages.NewCoordinator(&failingStore{}, packages.WithTempDir(tmp))

	_, err := coord.UploadDirectoryIfNeeded(t.Context(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, types.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	assertEmptyDir(t, tmp)
}

func TestUploadDirectoryIfNeeded_ConcurrentCallersDoNotCollide(t *testing.T) {
	coord, _, _, tmp := newDashboardCoordinator(t)
	dirs := []string{
		writeTree(t, map[string]string{"a.txt": "1"}),
		writeTree(t, map[string]string{"b.txt": "2"}),
		writeTree(t, map[string]string{"c.txt": "3"}),
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(dirs)*2)
	for _, d := range dirs {
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := coord.UploadDirectoryIfNeeded(t.Context(), d); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent upload: %v", err)
	}
	assertEmptyDir(t, tmp)
}
