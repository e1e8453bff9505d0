package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gleanerhq/gleaner/internal/collector"
	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/processor"
	"github.com/gleanerhq/gleaner/internal/quality"
	"github.com/gleanerhq/gleaner/internal/semantic"
	"github.com/gleanerhq/gleaner/internal/storage"
)

// recentCollector is implemented by collectors that can restrict collection
// to items modified after a point in time.
type recentCollector interface {
	CollectRecent(ctx context.Context, since time.Time) ([]collector.Raw, error)
}

// snapshot captures the components a run needs so a concurrent UpdateConfig
// cannot swap them out mid-pipeline.
func (c *Coordinator) snapshot() (config.Config, *processor.Processor, *quality.Controller, []collector.Collector) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cols := make([]collector.Collector, len(c.collectors))
	copy(cols, c.collectors)
	return c.cfg, c.proc, c.qc, cols
}

// RunFullIngestion collects from every enabled source, processes, validates,
// and stores the results. The returned Stats always has EndTime set, even
// when the run aborts early.
func (c *Coordinator) RunFullIngestion(ctx context.Context) (Stats, error) {
	return c.runIngestion(ctx, "full_ingestion", nil)
}

// RunIncremental behaves like RunFullIngestion but asks collectors for items
// modified after since. Collectors that cannot filter by time contribute
// their full set.
func (c *Coordinator) RunIncremental(ctx context.Context, since time.Time) (Stats, error) {
	return c.runIngestion(ctx, "incremental_ingestion", &since)
}

func (c *Coordinator) runIngestion(ctx context.Context, jobType string, since *time.Time) (Stats, error) {
	cfg, proc, qc, collectors := c.snapshot()

	job := c.startJob(jobType)
	stats := Stats{
		BySource:       map[string]SourceStats{},
		ByQualityLevel: map[string]int{},
		StartTime:      c.now().UTC(),
	}

	runErr := func() error {
		// Phase 1: collect.
		results := c.collect(ctx, collectors, since)
		for _, res := range results {
			src := stats.BySource[res.Source]
			if res.Err != nil {
				src.Errors++
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", res.Source, res.Err))
			}
			src.Items += len(res.Items)
			stats.BySource[res.Source] = src
			stats.TotalCollected += len(res.Items)
		}
		c.setProgress(job, 25)
		if err := ctx.Err(); err != nil {
			return err
		}

		var all []collector.Raw
		for _, res := range results {
			all = append(all, res.Items...)
		}

		// Phases 2-4 in batches: process, validate, store.
		batchSize := cfg.Processing.BatchSize
		if batchSize <= 0 {
			batchSize = 10
		}
		for start := 0; start < len(all); start += batchSize {
			end := start + batchSize
			if end > len(all) {
				end = len(all)
			}

			if err := c.ingestBatch(ctx, cfg, proc, qc, all[start:end], &stats); err != nil {
				return err
			}
			c.setProgress(job, 25+70*float64(end)/float64(len(all)))
		}
		return nil
	}()

	stats.EndTime = c.now().UTC()
	c.finishJob(job, runErr)
	c.writeReport(cfg, jobType, stats)

	c.logger.Info("ingestion run finished",
		"job_id", job.ID,
		"type", jobType,
		"collected", stats.TotalCollected,
		"stored", stats.TotalStored,
		"rejected", stats.TotalRejected,
		"errors", len(stats.Errors),
	)
	return stats, runErr
}

func (c *Coordinator) collect(ctx context.Context, collectors []collector.Collector, since *time.Time) []collector.Result {
	if since == nil {
		return collector.CollectAll(ctx, collectors)
	}

	results := make([]collector.Result, len(collectors))
	for i, col := range collectors {
		res := collector.Result{Source: col.Name()}
		if rc, ok := col.(recentCollector); ok {
			res.Items, res.Err = rc.CollectRecent(ctx, *since)
		} else {
			res.Items, res.Err = col.Collect(ctx)
		}
		if res.Err != nil {
			c.logger.Warn("collector failed", "source", col.Name(), "error", res.Err)
		}
		results[i] = res
	}
	return results
}

// ingestBatch runs one batch through processing, validation, and storage,
// updating stats in place.
func (c *Coordinator) ingestBatch(ctx context.Context, cfg config.Config, proc *processor.Processor, qc *quality.Controller, batch []collector.Raw, stats *Stats) error {
	processed, err := proc.ProcessBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("processing batch: %w", err)
	}
	stats.TotalProcessed += len(processed)

	items := make([]quality.Item, len(processed))
	for i, pc := range processed {
		items[i] = quality.ItemFromProcessed(pc)
	}
	reports, err := qc.ValidateBatch(ctx, items)
	if err != nil {
		return fmt.Errorf("validating batch: %w", err)
	}

	// reports is parallel to processed; a nil entry means validation did not
	// complete for that item.
	for i, report := range reports {
		if report == nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("validate %s: validation did not complete", processed[i].ContentID))
			continue
		}
		stats.ByQualityLevel[string(report.Level)]++
		if !report.Storable() {
			stats.TotalRejected++
			continue
		}
		if err := c.storeOne(cfg, processed[i], *report); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("store %s: %v", report.ContentID, err))
			continue
		}
		stats.TotalStored++
	}
	return nil
}

// storeOne persists one approved record and queues its embedding job.
func (c *Coordinator) storeOne(cfg config.Config, pc processor.ProcessedContent, report quality.Report) error {
	content := storage.FromProcessed(pc, report)
	if err := c.store.UpsertContent(content); err != nil {
		return err
	}

	if cfg.Semantic.Enabled {
		payload, err := json.Marshal(semantic.EmbedPayload{ContentID: content.ID})
		if err != nil {
			return err
		}
		if err := c.store.EnqueueJob(storage.Job{
			ID:          uuid.NewString(),
			Type:        semantic.JobTypeEmbed,
			PayloadJSON: string(payload),
		}); err != nil {
			c.logger.Warn("enqueueing embed job failed", "content_id", content.ID, "error", err)
		}
	}
	return nil
}

// writeReport persists the run stats next to the database so runs can be
// reviewed after the in-memory job history ages out.
func (c *Coordinator) writeReport(cfg config.Config, jobType string, stats Stats) {
	dir := cfg.Storage.StoragePath
	if dir == "" || dir == ":memory:" {
		return
	}
	if err := os.MkdirAll(filepath.Join(dir, "reports"), 0o755); err != nil {
		c.logger.Warn("creating reports directory failed", "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s.json", jobType, stats.StartTime.Format("20060102T150405Z"))
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		c.logger.Warn("encoding run report failed", "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "reports", name), data, 0o644); err != nil {
		c.logger.Warn("writing run report failed", "error", err)
	}
}
