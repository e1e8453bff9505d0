package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gleanerhq/gleaner/internal/config"
)

// AppData collects content from desktop applications: notes-app SQLite
// databases, browser bookmark exports, and markdown vaults.
type AppData struct {
	cfg      config.ApplicationsConfig
	priority PriorityPolicy
	logger   *slog.Logger
}

func NewAppData(cfg config.ApplicationsConfig) *AppData {
	return &AppData{
		cfg:      cfg,
		priority: NewPriorityPolicy(),
		logger:   slog.Default(),
	}
}

func (a *AppData) Name() string { return "application_data" }

func (a *AppData) Collect(ctx context.Context) ([]Raw, error) {
	return a.collect(ctx, time.Time{})
}

// CollectRecent collects only app content modified after since.
func (a *AppData) CollectRecent(ctx context.Context, since time.Time) ([]Raw, error) {
	return a.collect(ctx, since)
}

func (a *AppData) collect(ctx context.Context, since time.Time) ([]Raw, error) {
	if !a.cfg.Enabled {
		return nil, nil
	}

	var items []Raw

	for _, dbPath := range a.cfg.NotesDBPaths {
		notes, err := a.collectNotes(ctx, dbPath)
		if err != nil {
			a.logger.Warn("notes database failed", "path", dbPath, "error", err)
			continue
		}
		items = append(items, notes...)
	}

	for _, bmPath := range a.cfg.BookmarkPaths {
		bookmarks, err := a.collectBookmarks(bmPath)
		if err != nil {
			a.logger.Warn("bookmark file failed", "path", bmPath, "error", err)
			continue
		}
		items = append(items, bookmarks...)
	}

	for _, vault := range a.cfg.VaultPaths {
		notes, err := a.collectVault(ctx, vault, since)
		if err != nil {
			a.logger.Warn("vault failed", "path", vault, "error", err)
			continue
		}
		items = append(items, notes...)
	}

	if !since.IsZero() {
		filtered := items[:0]
		for _, it := range items {
			if it.ModifiedAt.IsZero() || !it.ModifiedAt.Before(since) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	return items, nil
}

// collectNotes reads a notes-app SQLite database. It opens the database
// read-only and probes the known schemas (a plain notes table first, then
// the Bear-style ZSFNOTE layout).
func (a *AppData) collectNotes(ctx context.Context, dbPath string) ([]Raw, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening notes db: %w", err)
	}
	defer db.Close()

	queries := []string{
		`SELECT id, title, body, modified_at FROM notes WHERE body IS NOT NULL`,
		`SELECT Z_PK, ZTITLE, ZTEXT, ZMODIFICATIONDATE FROM ZSFNOTE WHERE ZTRASHED = 0 AND ZTEXT IS NOT NULL`,
	}

	var rows *sql.Rows
	for _, q := range queries {
		rows, err = db.QueryContext(ctx, q)
		if err == nil {
			break
		}
	}
	if rows == nil {
		return nil, fmt.Errorf("no recognized notes schema in %s: %w", dbPath, err)
	}
	defer rows.Close()

	var items []Raw
	for rows.Next() {
		var id int64
		var title, body sql.NullString
		var modified sql.NullFloat64
		if err := rows.Scan(&id, &title, &body, &modified); err != nil {
			a.logger.Warn("scanning note failed", "path", dbPath, "error", err)
			continue
		}
		if body.String == "" {
			continue
		}

		modTime := noteTimestamp(modified)
		items = append(items, Raw{
			Source:      a.Name(),
			ID:          fmt.Sprintf("%s#%d", dbPath, id),
			Name:        title.String,
			Path:        dbPath,
			Title:       title.String,
			Content:     body.String,
			SizeBytes:   int64(len(body.String)),
			ModifiedAt:  modTime,
			CollectedAt: time.Now().UTC(),
			Priority:    a.priority.Score("note", int64(len(body.String)), modTime),
			Metadata: map[string]string{
				"app":      "notes",
				"category": "note",
			},
		})
	}
	return items, rows.Err()
}

// appleEpoch is the reference date used by Core Data timestamp columns.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

func noteTimestamp(v sql.NullFloat64) time.Time {
	if !v.Valid || v.Float64 <= 0 {
		return time.Time{}
	}
	// Core Data stores seconds since 2001-01-01; Unix-style values are
	// large enough to tell apart.
	if v.Float64 > 1e9 {
		return time.Unix(int64(v.Float64), 0).UTC()
	}
	return appleEpoch.Add(time.Duration(v.Float64 * float64(time.Second)))
}

// bookmarkNode mirrors the Chrome/Chromium Bookmarks JSON tree.
type bookmarkNode struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	URL      string         `json:"url"`
	Children []bookmarkNode `json:"children"`
}

func (a *AppData) collectBookmarks(path string) ([]Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Roots map[string]bookmarkNode `json:"roots"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing bookmarks file: %w", err)
	}

	var items []Raw
	seq := 0
	var walk func(node bookmarkNode, folder string)
	walk = func(node bookmarkNode, folder string) {
		if node.Type == "url" && node.URL != "" {
			seq++
			content := fmt.Sprintf("%s\n%s", node.Name, node.URL)
			items = append(items, Raw{
				Source:      a.Name(),
				ID:          fmt.Sprintf("%s#%d", path, seq),
				Name:        node.Name,
				Path:        path,
				Title:       node.Name,
				Content:     content,
				SizeBytes:   int64(len(content)),
				CollectedAt: time.Now().UTC(),
				Priority:    a.priority.Score("bookmark", int64(len(content)), time.Time{}),
				Metadata: map[string]string{
					"app":      "browser",
					"category": "bookmark",
					"url":      node.URL,
					"folder":   folder,
				},
			})
			return
		}
		for _, child := range node.Children {
			walk(child, node.Name)
		}
	}
	for _, root := range doc.Roots {
		walk(root, root.Name)
	}
	return items, nil
}

// collectVault walks a markdown vault, skipping the vault's own metadata
// directory.
func (a *AppData) collectVault(ctx context.Context, root string, since time.Time) ([]Raw, error) {
	var items []Raw
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !since.IsZero() && info.ModTime().Before(since) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("reading vault note failed", "path", path, "error", err)
			return nil
		}

		name := filepath.Base(path)
		items = append(items, Raw{
			Source:      a.Name(),
			ID:          path,
			Name:        name,
			Path:        path,
			Title:       strings.TrimSuffix(name, ".md"),
			Content:     string(data),
			SizeBytes:   info.Size(),
			ModifiedAt:  info.ModTime(),
			CollectedAt: time.Now().UTC(),
			Priority:    a.priority.Score("note", info.Size(), info.ModTime()),
			Metadata: map[string]string{
				"app":      "vault",
				"category": "note",
				"vault":    root,
				"size":     strconv.FormatInt(info.Size(), 10),
			},
		})
		return nil
	})
	return items, err
}
