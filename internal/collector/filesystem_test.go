package collector

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gleanerhq/gleaner/internal/config"
)

func testFSConfig(root string) config.FileSystemConfig {
	return config.FileSystemConfig{
		Enabled:          true,
		ScanPaths:        []string{root},
		ExcludePatterns:  []string{"node_modules"},
		SupportedFormats: []string{".txt", ".md", ".html"},
		MaxFileSize:      1 << 20,
	}
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSystem_Collect(t *testing.T) {
	dir := t.TempDir()
	body := strings.Repeat("meaningful note content. ", 10)
	writeTestFile(t, dir, "notes.md", body)
	writeTestFile(t, dir, "report.txt", body)

	fs := NewFileSystem(testFSConfig(dir))
	items, err := fs.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Source != "file_system" {
			t.Errorf("Source = %q, want file_system", it.Source)
		}
		if it.Content != body {
			t.Errorf("Content mismatch for %s", it.Path)
		}
		if it.Priority < 0 || it.Priority > 10 {
			t.Errorf("Priority = %g, want within [0,10]", it.Priority)
		}
		if it.Metadata["category"] == "" {
			t.Errorf("missing category metadata for %s", it.Path)
		}
	}
}

func TestFileSystem_SkipsIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	body := strings.Repeat("content that matters here. ", 10)

	writeTestFile(t, dir, "keep.txt", body)
	writeTestFile(t, dir, "skip.exe", body)                              // unsupported format
	writeTestFile(t, dir, ".hidden.txt", body)                           // hidden
	writeTestFile(t, dir, "tiny.txt", "x")                               // below minimum size
	writeTestFile(t, dir, filepath.Join("node_modules", "x.txt"), body)  // excluded dir
	writeTestFile(t, dir, filepath.Join(".git", "config.txt"), body)     // dot dir
	writeTestFile(t, dir, "big.txt", strings.Repeat("a", (1<<20)+1))     // above max size

	fs := NewFileSystem(testFSConfig(dir))
	items, err := fs.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(items) != 1 {
		names := make([]string, len(items))
		for i, it := range items {
			names[i] = it.Name
		}
		t.Fatalf("got %d items (%v), want 1", len(items), names)
	}
	if items[0].Name != "keep.txt" {
		t.Errorf("collected %q, want keep.txt", items[0].Name)
	}
}

func TestFileSystem_CollectRecent(t *testing.T) {
	dir := t.TempDir()
	body := strings.Repeat("incremental test content. ", 10)

	oldPath := writeTestFile(t, dir, "old.txt", body)
	writeTestFile(t, dir, "new.txt", body)

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatal(err)
	}

	fs := NewFileSystem(testFSConfig(dir))
	items, err := fs.CollectRecent(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CollectRecent() error = %v", err)
	}

	if len(items) != 1 || items[0].Name != "new.txt" {
		t.Errorf("items = %+v, want only new.txt", items)
	}
}

func TestFileSystem_HTMLTitle(t *testing.T) {
	dir := t.TempDir()
	html := `<html><head><title>Meeting Notes</title><script>ignored()</script></head>
<body><p>Decisions from the planning session, captured for later reference.</p></body></html>`
	writeTestFile(t, dir, "page.html", html)

	fs := NewFileSystem(testFSConfig(dir))
	items, err := fs.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}

	if items[0].Title != "Meeting Notes" {
		t.Errorf("Title = %q, want Meeting Notes", items[0].Title)
	}
	if strings.Contains(items[0].Content, "ignored()") {
		t.Error("script content leaked into extracted text")
	}
	if !strings.Contains(items[0].Content, "planning session") {
		t.Errorf("Content = %q, want body text", items[0].Content)
	}
}

func TestFileSystem_Disabled(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", strings.Repeat("content here. ", 20))

	cfg := testFSConfig(dir)
	cfg.Enabled = false

	fs := NewFileSystem(cfg)
	items, err := fs.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items from disabled collector, want 0", len(items))
	}
}

func TestFileSystem_CollectFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "single.md", "short")

	fs := NewFileSystem(testFSConfig(dir))
	item, err := fs.CollectFile(context.Background(), path)
	if err != nil {
		t.Fatalf("CollectFile() error = %v", err)
	}

	// Explicit requests bypass the relevance filter, even for small files.
	if item.Content != "short" {
		t.Errorf("Content = %q, want short", item.Content)
	}
	if item.Title != "single" {
		t.Errorf("Title = %q, want single", item.Title)
	}
}

func TestFileSystem_CollectFileMissing(t *testing.T) {
	fs := NewFileSystem(testFSConfig(t.TempDir()))
	if _, err := fs.CollectFile(context.Background(), "/nonexistent/file.txt"); err == nil {
		t.Error("CollectFile() error = nil, want error for missing file")
	}
}
