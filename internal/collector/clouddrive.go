package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gleanerhq/gleaner/internal/config"
)

// DriveFile describes one remote file a Drive can serve.
type DriveFile struct {
	ID         string
	Name       string
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// Drive abstracts a remote cloud drive. Implementations wrap whatever
// provider API the caller has access to; this package never talks to a
// provider directly.
type Drive interface {
	Name() string
	List(ctx context.Context) ([]DriveFile, error)
	Download(ctx context.Context, id string) (io.ReadCloser, error)
}

// CloudDrive collects documents from locally synced drive folders and any
// injected remote Drive implementations.
type CloudDrive struct {
	cfg      config.CloudDrivesConfig
	drives   []Drive
	fs       *FileSystem
	priority PriorityPolicy
	logger   *slog.Logger
}

func NewCloudDrive(cfg config.CloudDrivesConfig, drives ...Drive) *CloudDrive {
	// Synced folders are plain directories; reuse the file walker with the
	// drive-specific roots and a permissive document filter.
	fsCfg := config.FileSystemConfig{
		Enabled:          cfg.Enabled,
		ScanPaths:        cfg.SyncDirs,
		ExcludePatterns:  []string{".git", "node_modules"},
		SupportedFormats: []string{".txt", ".md", ".pdf", ".html", ".htm", ".rtf", ".csv", ".json"},
		MaxFileSize:      100 << 20,
	}
	return &CloudDrive{
		cfg:      cfg,
		drives:   drives,
		fs:       NewFileSystem(fsCfg),
		priority: NewPriorityPolicy(),
		logger:   slog.Default(),
	}
}

func (c *CloudDrive) Name() string { return "cloud_drives" }

// Collect gathers synced folders first, then each remote drive. A failing
// drive contributes nothing; its error is logged and collection continues.
func (c *CloudDrive) Collect(ctx context.Context) ([]Raw, error) {
	if !c.cfg.Enabled {
		return nil, nil
	}

	items, err := c.fs.Collect(ctx)
	if err != nil {
		return items, err
	}
	for i := range items {
		items[i].Source = c.Name()
		items[i].Metadata["provider"] = "synced_folder"
	}

	for _, drive := range c.drives {
		driveItems, err := c.collectDrive(ctx, drive)
		if err != nil {
			c.logger.Warn("drive collection failed", "drive", drive.Name(), "error", err)
			continue
		}
		items = append(items, driveItems...)
	}
	return items, nil
}

func (c *CloudDrive) collectDrive(ctx context.Context, drive Drive) ([]Raw, error) {
	files, err := drive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", drive.Name(), err)
	}

	var items []Raw
	for _, df := range files {
		if !documentLike(df.Name) {
			continue
		}
		content, err := c.download(ctx, drive, df.ID)
		if err != nil {
			c.logger.Warn("download failed", "drive", drive.Name(), "file", df.Name, "error", err)
			continue
		}

		ext := strings.ToLower(filepath.Ext(df.Name))
		category := categoryForExt[ext]
		if category == "" {
			category = "document"
		}

		items = append(items, Raw{
			Source:      c.Name(),
			ID:          drive.Name() + ":" + df.ID,
			Name:        df.Name,
			Path:        df.Path,
			Title:       strings.TrimSuffix(df.Name, ext),
			Content:     content,
			SizeBytes:   df.SizeBytes,
			ModifiedAt:  df.ModifiedAt,
			CollectedAt: time.Now().UTC(),
			Priority:    c.priority.Score(category, df.SizeBytes, df.ModifiedAt),
			Metadata: map[string]string{
				"provider":  drive.Name(),
				"category":  category,
				"extension": ext,
			},
		})
	}
	return items, nil
}

func (c *CloudDrive) download(ctx context.Context, drive Drive, id string) (string, error) {
	rc, err := drive.Download(ctx, id)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func documentLike(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".rtf", ".pdf", ".doc", ".docx", ".html", ".htm", ".csv", ".json":
		return true
	}
	return false
}
