package browse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gwlsn/augmentor/internal/media"
)

type fakeProber struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func (p *fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[path]++
	if p.fail {
		return 0, errors.New("probe failed")
	}
	return 95 * time.Second, nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
}

func setupTree(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	shots := filepath.Join(tmpDir, "Shots")
	if err := os.MkdirAll(shots, 0755); err != nil {
		t.Fatalf("failed to create test dirs: %v", err)
	}
	writeFile(t, filepath.Join(shots, "a.png"), 10)
	writeFile(t, filepath.Join(shots, "b.jpg"), 10)
	writeFile(t, filepath.Join(shots, "notes.txt"), 10)

	writeFile(t, filepath.Join(tmpDir, "cat.png"), 2048)
	writeFile(t, filepath.Join(tmpDir, "Clip.mp4"), 100)
	writeFile(t, filepath.Join(tmpDir, "readme.md"), 5)
	writeFile(t, filepath.Join(tmpDir, ".hidden.png"), 5)
	return tmpDir
}

func TestBrowser(t *testing.T) {
	tmpDir := setupTree(t)
	prober := &fakeProber{}
	browser := NewBrowser(prober, tmpDir)
	ctx := context.Background()

	result, err := browser.Browse(ctx, tmpDir, "")
	if err != nil {
		t.Fatalf("Browse failed: %v", err)
	}
	if result.Path != tmpDir || result.Parent != "" {
		t.Errorf("unexpected path/parent %s / %s", result.Path, result.Parent)
	}

	// Directories first, then media by name; text and hidden files skipped
	want := []string{"Shots", "cat.png", "Clip.mp4"}
	if len(result.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(result.Entries))
	}
	for i, name := range want {
		if result.Entries[i].Name != name {
			t.Errorf("entry %d: expected %s, got %s", i, name, result.Entries[i].Name)
		}
	}

	if result.Entries[0].FileCount != 2 {
		t.Errorf("expected 2 media files in Shots, got %d", result.Entries[0].FileCount)
	}
	cat := result.Entries[1]
	if cat.Kind != media.KindImage || cat.SizeText != "2.0 KiB" || cat.TooLarge {
		t.Errorf("unexpected image entry %+v", cat)
	}
	clip := result.Entries[2]
	if clip.Kind != media.KindVideo || clip.Duration != 95*time.Second {
		t.Errorf("unexpected video entry %+v", clip)
	}
	if result.FileCount != 2 || result.TotalSize != 2148 {
		t.Errorf("unexpected totals %d files, %d bytes", result.FileCount, result.TotalSize)
	}

	// Second browse uses the cached duration
	if _, err := browser.Browse(ctx, tmpDir, ""); err != nil {
		t.Fatal(err)
	}
	if n := prober.calls[filepath.Join(tmpDir, "Clip.mp4")]; n != 1 {
		t.Errorf("expected one probe, got %d", n)
	}

	browser.ClearCache()
	if _, err := browser.Browse(ctx, tmpDir, ""); err != nil {
		t.Fatal(err)
	}
	if n := prober.calls[filepath.Join(tmpDir, "Clip.mp4")]; n != 2 {
		t.Errorf("expected a fresh probe after ClearCache, got %d probes", n)
	}

	sub, err := browser.Browse(ctx, "Shots", "")
	if err != nil {
		t.Fatalf("Browse Shots failed: %v", err)
	}
	if sub.Parent != tmpDir || len(sub.Entries) != 2 {
		t.Errorf("unexpected sub listing %+v", sub)
	}
}

func TestBrowseByKind(t *testing.T) {
	tmpDir := setupTree(t)
	browser := NewBrowser(nil, tmpDir)

	result, err := browser.Browse(context.Background(), tmpDir, media.KindVideo)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 || result.Entries[1].Name != "Clip.mp4" {
		t.Errorf("expected Shots and Clip.mp4, got %+v", result.Entries)
	}
	if result.Entries[0].FileCount != 0 {
		t.Errorf("Shots holds no videos, got %d", result.Entries[0].FileCount)
	}
	if result.Entries[1].Duration != 0 {
		t.Error("duration should be unknown without a prober")
	}
}

func TestBrowseMarksOversizedFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "huge.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// sparse file just over the image limit
	if err := f.Truncate(media.MaxImageBytes + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	result, err := NewBrowser(nil, tmpDir).Browse(context.Background(), "", media.KindImage)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 1 || !result.Entries[0].TooLarge {
		t.Errorf("expected oversized entry, got %+v", result.Entries)
	}
}

func TestBrowserSecurity(t *testing.T) {
	tmpDir := t.TempDir()
	browser := NewBrowser(nil, tmpDir)
	ctx := context.Background()

	for _, path := range []string{"/etc", filepath.Join(tmpDir, "..", ".."), "../outside", tmpDir + "-sibling"} {
		if _, err := browser.Browse(ctx, path, ""); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Browse(%s): expected ErrOutsideRoot, got %v", path, err)
		}
	}

	if _, err := browser.Open(ctx, "/etc/passwd"); !errors.Is(err, ErrOutsideRoot) {
		t.Errorf("expected ErrOutsideRoot, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	tmpDir := setupTree(t)
	ctx := context.Background()

	browser := NewBrowser(&fakeProber{}, tmpDir)
	f, err := browser.Open(ctx, "Clip.mp4")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if f.MIMEType != "video/mp4" || f.Size != 100 || f.DurationSeconds() != 95 {
		t.Errorf("unexpected file %+v", f)
	}
	if err := media.Validate(f, media.KindVideo); err != nil {
		t.Errorf("opened file should validate: %v", err)
	}

	failing := NewBrowser(&fakeProber{fail: true}, tmpDir)
	f, err = failing.Open(ctx, filepath.Join(tmpDir, "Clip.mp4"))
	if err != nil {
		t.Fatalf("probe failure should not fail Open: %v", err)
	}
	if f.Duration != 0 {
		t.Errorf("expected unknown duration, got %v", f.Duration)
	}

	if _, err := browser.Open(ctx, "Shots"); err == nil {
		t.Error("expected error opening a directory")
	}
}
