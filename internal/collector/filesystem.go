package collector

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gleanerhq/gleaner/internal/config"
)

// categoryForExt maps a file extension to a coarse content category used for
// prioritization and relevance filtering.
var categoryForExt = map[string]string{
	".txt":  "text",
	".md":   "note",
	".rst":  "note",
	".pdf":  "document",
	".doc":  "document",
	".docx": "document",
	".rtf":  "document",
	".html": "text",
	".htm":  "text",
	".json": "data",
	".csv":  "data",
	".xml":  "data",
	".yaml": "data",
	".yml":  "data",
	".go":   "code",
	".py":   "code",
	".js":   "code",
	".ts":   "code",
	".sh":   "code",
	".epub": "ebook",
	".ppt":  "presentation",
	".pptx": "presentation",
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".gif":  "image",
}

// FileSystem walks configured directories and collects supported files.
type FileSystem struct {
	cfg      config.FileSystemConfig
	priority PriorityPolicy
	logger   *slog.Logger
}

func NewFileSystem(cfg config.FileSystemConfig) *FileSystem {
	return &FileSystem{
		cfg:      cfg,
		priority: NewPriorityPolicy(),
		logger:   slog.Default(),
	}
}

func (f *FileSystem) Name() string { return "file_system" }

// Collect walks every scan path and returns one Raw per relevant file.
// Unreadable files and directories are logged and skipped.
func (f *FileSystem) Collect(ctx context.Context) ([]Raw, error) {
	return f.collect(ctx, time.Time{})
}

// CollectRecent collects only files modified after since.
func (f *FileSystem) CollectRecent(ctx context.Context, since time.Time) ([]Raw, error) {
	return f.collect(ctx, since)
}

func (f *FileSystem) collect(ctx context.Context, since time.Time) ([]Raw, error) {
	if !f.cfg.Enabled {
		return nil, nil
	}

	var items []Raw
	for _, root := range f.cfg.ScanPaths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				f.logger.Warn("walk error", "path", path, "error", err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if f.excluded(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			info, err := d.Info()
			if err != nil {
				f.logger.Warn("stat failed", "path", path, "error", err)
				return nil
			}
			if !f.relevant(path, info.Size()) {
				return nil
			}
			if !since.IsZero() && info.ModTime().Before(since) {
				return nil
			}

			item, err := f.collectFile(path, info)
			if err != nil {
				f.logger.Warn("collecting file failed", "path", path, "error", err)
				return nil
			}
			items = append(items, item)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return items, ctx.Err()
			}
			f.logger.Warn("scan path failed", "path", root, "error", err)
		}
	}
	return items, nil
}

// CollectFile collects a single file by path, bypassing the relevance filter.
// Used for explicit single-file and batch ingestion requests.
func (f *FileSystem) CollectFile(ctx context.Context, path string) (Raw, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Raw{}, err
	}
	return f.collectFile(path, info)
}

func (f *FileSystem) collectFile(path string, info fs.FileInfo) (Raw, error) {
	content, title, err := extractText(path)
	if err != nil {
		return Raw{}, err
	}

	name := filepath.Base(path)
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	ext := strings.ToLower(filepath.Ext(path))
	category := categoryForExt[ext]
	if category == "" {
		category = "other"
	}

	return Raw{
		Source:      f.Name(),
		ID:          path,
		Name:        name,
		Path:        path,
		Title:       title,
		Content:     content,
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
		CollectedAt: time.Now().UTC(),
		Priority:    f.priority.Score(category, info.Size(), info.ModTime()),
		Metadata: map[string]string{
			"category":  category,
			"extension": ext,
			"directory": filepath.Dir(path),
			"size":      strconv.FormatInt(info.Size(), 10),
		},
	}, nil
}

// relevant reports whether a file is worth collecting: a supported format,
// within the size cap, not hidden, and not trivially small.
func (f *FileSystem) relevant(path string, size int64) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if size < 100 {
		return false
	}
	if f.cfg.MaxFileSize > 0 && size > f.cfg.MaxFileSize {
		return false
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range f.cfg.SupportedFormats {
		if ext == supported {
			return true
		}
	}
	return false
}

func (f *FileSystem) excluded(dirName string) bool {
	if strings.HasPrefix(dirName, ".") && dirName != "." {
		return true
	}
	for _, pattern := range f.cfg.ExcludePatterns {
		if dirName == pattern {
			return true
		}
	}
	return false
}
