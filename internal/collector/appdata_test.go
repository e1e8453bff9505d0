package collector

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/gleanerhq/gleaner/internal/config"
)

func TestAppData_Bookmarks(t *testing.T) {
	dir := t.TempDir()
	bookmarks := `{
		"roots": {
			"bookmark_bar": {
				"name": "Bookmarks bar",
				"type": "folder",
				"children": [
					{"name": "Go Blog", "type": "url", "url": "https://go.dev/blog"},
					{"name": "Reading", "type": "folder", "children": [
						{"name": "Paper", "type": "url", "url": "https://example.com/paper"}
					]}
				]
			}
		}
	}`
	path := filepath.Join(dir, "Bookmarks")
	if err := os.WriteFile(path, []byte(bookmarks), 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewAppData(config.ApplicationsConfig{Enabled: true, BookmarkPaths: []string{path}})
	items, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	byTitle := map[string]Raw{}
	for _, it := range items {
		byTitle[it.Title] = it
	}
	goBlog, ok := byTitle["Go Blog"]
	if !ok {
		t.Fatal("missing Go Blog bookmark")
	}
	if goBlog.Metadata["url"] != "https://go.dev/blog" {
		t.Errorf("url = %q, want https://go.dev/blog", goBlog.Metadata["url"])
	}
	if paper := byTitle["Paper"]; paper.Metadata["folder"] != "Reading" {
		t.Errorf("folder = %q, want Reading", paper.Metadata["folder"])
	}
}

func TestAppData_Vault(t *testing.T) {
	vault := t.TempDir()
	if err := os.MkdirAll(filepath.Join(vault, ".obsidian"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"daily.md":                  "- [ ] review [[project-plan]]\n- meeting notes",
		"sub/idea.md":               "a promising idea worth keeping",
		".obsidian/workspace.md":    "vault internals, must be skipped",
		"picture.png":               "not markdown",
	}
	for name, content := range files {
		path := filepath.Join(vault, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a := NewAppData(config.ApplicationsConfig{Enabled: true, VaultPaths: []string{vault}})
	items, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	for _, it := range items {
		if it.Metadata["app"] != "vault" {
			t.Errorf("app = %q, want vault", it.Metadata["app"])
		}
		if filepath.Ext(it.Path) != ".md" {
			t.Errorf("collected non-markdown file %s", it.Path)
		}
	}
}

func TestAppData_NotesDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "notes.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT, body TEXT, modified_at REAL)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO notes (title, body, modified_at) VALUES
		('Groceries', 'milk, eggs, coffee', 1750000000),
		('Empty', NULL, 1750000000),
		('Project', 'kick-off planned for next month', 1750000000)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	a := NewAppData(config.ApplicationsConfig{Enabled: true, NotesDBPaths: []string{dbPath}})
	items, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (NULL body skipped)", len(items))
	}
	if items[0].Title != "Groceries" {
		t.Errorf("Title = %q, want Groceries", items[0].Title)
	}
	if items[0].ModifiedAt.IsZero() {
		t.Error("ModifiedAt not populated from unix timestamp")
	}
}

func TestAppData_MissingSourcesIsolated(t *testing.T) {
	a := NewAppData(config.ApplicationsConfig{
		Enabled:       true,
		NotesDBPaths:  []string{"/nonexistent/notes.db"},
		BookmarkPaths: []string{"/nonexistent/Bookmarks"},
	})

	items, err := a.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v, want nil (per-source failures are logged)", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}

func TestAppData_Disabled(t *testing.T) {
	a := NewAppData(config.ApplicationsConfig{Enabled: false})
	items, err := a.Collect(context.Background())
	if err != nil || len(items) != 0 {
		t.Errorf("Collect() = %v, %v, want empty, nil", items, err)
	}
}
