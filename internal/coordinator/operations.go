package coordinator

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gleanerhq/gleaner/internal/collector"
	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/processor"
	"github.com/gleanerhq/gleaner/internal/quality"
	"github.com/gleanerhq/gleaner/internal/storage"
)

// ProcessSingleFile ingests one file from disk through the full pipeline.
// Content that fails validation is not stored and the job is marked failed;
// the returned JobInfo lets callers inspect the job record either way.
func (c *Coordinator) ProcessSingleFile(ctx context.Context, path string) (quality.Report, JobInfo, error) {
	cfg, proc, qc, _ := c.snapshot()
	job := c.startJob("single_file")

	report, err := func() (quality.Report, error) {
		pc, err := proc.ProcessFile(ctx, path, nil)
		if err != nil {
			return quality.Report{}, fmt.Errorf("processing %s: %w", path, err)
		}
		c.setProgress(job, 50)

		report, err := qc.Validate(ctx, quality.ItemFromProcessed(pc))
		if err != nil {
			return quality.Report{}, fmt.Errorf("validating %s: %w", path, err)
		}
		c.setProgress(job, 75)

		if !report.Storable() {
			return report, fmt.Errorf("%s rejected: quality score %.2f (level %s)", path, report.Score, report.Level)
		}
		if err := c.storeOne(cfg, pc, report); err != nil {
			return report, fmt.Errorf("storing %s: %w", path, err)
		}
		return report, nil
	}()

	c.finishJob(job, err)
	info, _ := c.Job(job.ID)
	return report, info, err
}

// ProcessBatchFiles ingests several files; the job succeeds if at least one
// file makes it into storage. The returned JobInfo identifies the job record.
func (c *Coordinator) ProcessBatchFiles(ctx context.Context, paths []string) (Stats, JobInfo, error) {
	cfg, proc, qc, _ := c.snapshot()
	job := c.startJob("batch_files")

	stats := Stats{
		BySource:       map[string]SourceStats{},
		ByQualityLevel: map[string]int{},
		StartTime:      c.now().UTC(),
	}

	stored := 0
	for i, path := range paths {
		err := func() error {
			pc, err := proc.ProcessFile(ctx, path, nil)
			if err != nil {
				return err
			}
			stats.TotalProcessed++

			report, err := qc.Validate(ctx, quality.ItemFromProcessed(pc))
			if err != nil {
				return err
			}
			stats.ByQualityLevel[string(report.Level)]++
			if !report.Storable() {
				stats.TotalRejected++
				return nil
			}
			if err := c.storeOne(cfg, pc, report); err != nil {
				return err
			}
			stats.TotalStored++
			stored++
			return nil
		}()
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
		}
		stats.TotalCollected++
		c.setProgress(job, 100*float64(i+1)/float64(len(paths)))

		if ctx.Err() != nil {
			break
		}
	}
	stats.EndTime = c.now().UTC()

	var runErr error
	if len(paths) > 0 && stored == 0 {
		runErr = fmt.Errorf("no files stored out of %d", len(paths))
	}
	c.finishJob(job, runErr)
	info, _ := c.Job(job.ID)
	return stats, info, runErr
}

// SyncCloudDrives runs ingestion for the cloud drive source only.
func (c *Coordinator) SyncCloudDrives(ctx context.Context) (Stats, error) {
	cfg, proc, qc, collectors := c.snapshot()
	job := c.startJob("cloud_sync")

	stats := Stats{
		BySource:       map[string]SourceStats{},
		ByQualityLevel: map[string]int{},
		StartTime:      c.now().UTC(),
	}

	runErr := func() error {
		if !cfg.CloudDrives.Enabled {
			return fmt.Errorf("cloud drives are disabled")
		}

		var items []storageBatch
		for _, col := range collectors {
			if col.Name() != "cloud_drives" {
				continue
			}
			raw, err := col.Collect(ctx)
			if err != nil {
				return fmt.Errorf("collecting from cloud drives: %w", err)
			}
			items = append(items, storageBatch{source: col.Name(), items: raw})
		}
		c.setProgress(job, 25)

		for i, batch := range items {
			stats.BySource[batch.source] = SourceStats{Items: len(batch.items)}
			stats.TotalCollected += len(batch.items)
			if err := c.ingestBatch(ctx, cfg, proc, qc, batch.items, &stats); err != nil {
				return err
			}
			c.setProgress(job, 25+75*float64(i+1)/float64(len(items)))
		}
		return nil
	}()

	stats.EndTime = c.now().UTC()
	c.finishJob(job, runErr)
	return stats, runErr
}

type storageBatch struct {
	source string
	items  []collector.Raw
}

// UpdateConfig applies a new configuration document. The document must carry
// the file_system, processing, and storage sections; other sections keep
// their current values. Collectors and pipeline components are rebuilt.
func (c *Coordinator) UpdateConfig(raw []byte) (config.Config, error) {
	var sections map[string]interface{}
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return config.Config{}, fmt.Errorf("parsing config update: %w", err)
	}
	for _, required := range []string{"file_system", "processing", "storage"} {
		if _, ok := sections[required]; !ok {
			return config.Config{}, fmt.Errorf("config update missing required section %q", required)
		}
	}

	c.mu.RLock()
	updated := c.cfg
	c.mu.RUnlock()

	if err := yaml.Unmarshal(raw, &updated); err != nil {
		return config.Config{}, fmt.Errorf("applying config update: %w", err)
	}
	if err := config.Validate(updated); err != nil {
		return config.Config{}, fmt.Errorf("invalid config update: %w", err)
	}

	c.mu.Lock()
	c.cfg = updated
	c.collectors = buildCollectors(updated)
	c.proc = processor.New(updated.Processing)
	c.qc = quality.NewController(updated.QualityControl)
	c.mu.Unlock()

	c.logger.Info("configuration updated")
	return updated, nil
}

// Config returns the current configuration.
func (c *Coordinator) Config() config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// --- Knowledge facades over storage ---

// SearchKnowledge runs a filtered search over stored content.
func (c *Coordinator) SearchKnowledge(query string, filters storage.SearchFilters, limit int) ([]storage.ContentSummary, error) {
	return c.store.SearchContent(query, filters, limit)
}

// RecentKnowledge lists the most recently processed content.
func (c *Coordinator) RecentKnowledge(limit int) ([]storage.ContentSummary, error) {
	return c.store.RecentContent(limit)
}

// GetKnowledge loads one stored record.
func (c *Coordinator) GetKnowledge(id string) (storage.Content, error) {
	return c.store.GetContent(id)
}

// Statistics summarizes the stored corpus.
func (c *Coordinator) Statistics() (storage.Statistics, error) {
	return c.store.Statistics()
}

// ListCollections lists stored collections.
func (c *Coordinator) ListCollections() ([]storage.Collection, error) {
	return c.store.ListCollections()
}

// DeleteCollection removes a collection without touching its content.
func (c *Coordinator) DeleteCollection(name string) error {
	return c.store.DeleteCollection(name)
}

// ExportKnowledge streams the whole corpus as JSON lines.
func (c *Coordinator) ExportKnowledge(w io.Writer) error {
	return c.store.ExportContent(w)
}

// CleanupKnowledge removes content below floor, plus stale mediocre content
// older than maxAge.
func (c *Coordinator) CleanupKnowledge(floor float64, maxAge time.Duration) (int, error) {
	cutoff := c.now().UTC().Add(-maxAge)
	return c.store.Cleanup(floor, cutoff)
}
