package coordinator

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gleanerhq/gleaner/internal/collector"
	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/processor"
	"github.com/gleanerhq/gleaner/internal/quality"
	"github.com/gleanerhq/gleaner/internal/storage"
)

// JobInfo is the tracked state of one ingestion job. Job state lives in
// memory only; a restart forgets past runs, while the stored content and the
// persisted run reports survive.
type JobInfo struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"` // "running", "completed", "failed"
	Progress  float64   `json:"progress"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SourceStats counts what one collector contributed to a run.
type SourceStats struct {
	Items  int `json:"items"`
	Errors int `json:"errors"`
}

// Stats summarizes one ingestion run.
type Stats struct {
	TotalCollected int                    `json:"total_collected"`
	TotalProcessed int                    `json:"total_processed"`
	TotalStored    int                    `json:"total_stored"`
	TotalRejected  int                    `json:"total_rejected"`
	BySource       map[string]SourceStats `json:"by_source"`
	ByQualityLevel map[string]int         `json:"by_quality_level"`
	Errors         []string               `json:"errors,omitempty"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
}

// maxCompletedJobs bounds the in-memory history of finished jobs.
const maxCompletedJobs = 200

// Coordinator wires collectors, the processor, the quality controller, and
// storage into end-to-end ingestion runs, and tracks those runs as jobs.
type Coordinator struct {
	cfg    config.Config
	proc   *processor.Processor
	qc     *quality.Controller
	store  *storage.Store
	logger *slog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	collectors []collector.Collector
	active     map[string]*JobInfo
	completed  map[string]*JobInfo
	order      []string // completed job IDs, oldest first
}

// New builds a Coordinator with collectors derived from the enabled config
// sections.
func New(cfg config.Config, store *storage.Store) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		proc:      processor.New(cfg.Processing),
		qc:        quality.NewController(cfg.QualityControl),
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		active:    make(map[string]*JobInfo),
		completed: make(map[string]*JobInfo),
	}
	c.collectors = buildCollectors(cfg)
	return c
}

func buildCollectors(cfg config.Config) []collector.Collector {
	var out []collector.Collector
	if cfg.FileSystem.Enabled {
		out = append(out, collector.NewFileSystem(cfg.FileSystem))
	}
	if cfg.CloudDrives.Enabled {
		out = append(out, collector.NewCloudDrive(cfg.CloudDrives))
	}
	if cfg.Applications.Enabled {
		out = append(out, collector.NewAppData(cfg.Applications))
	}
	if cfg.DigitalLibrary.Enabled {
		out = append(out, collector.NewDigitalLibrary(cfg.DigitalLibrary, &http.Client{Timeout: 15 * time.Second}, cfg.DigitalLibrary.Queries))
	}
	return out
}

// Collectors returns the names of the active collectors.
func (c *Coordinator) Collectors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.collectors))
	for i, col := range c.collectors {
		names[i] = col.Name()
	}
	return names
}

// --- Job tracking ---

func (c *Coordinator) startJob(jobType string) *JobInfo {
	job := &JobInfo{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    "running",
		StartTime: c.now().UTC(),
	}
	c.mu.Lock()
	c.active[job.ID] = job
	c.mu.Unlock()
	return job
}

func (c *Coordinator) setProgress(job *JobInfo, progress float64) {
	c.mu.Lock()
	job.Progress = progress
	c.mu.Unlock()
}

func (c *Coordinator) finishJob(job *JobInfo, runErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job.EndTime = c.now().UTC()
	if runErr != nil {
		job.Status = "failed"
		job.Error = runErr.Error()
	} else {
		job.Status = "completed"
		job.Progress = 100
	}

	delete(c.active, job.ID)
	c.completed[job.ID] = job
	c.order = append(c.order, job.ID)
	for len(c.order) > maxCompletedJobs {
		delete(c.completed, c.order[0])
		c.order = c.order[1:]
	}
}

// Job returns the tracked state of a job and whether it exists.
func (c *Coordinator) Job(id string) (JobInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if job, ok := c.active[id]; ok {
		return *job, true
	}
	if job, ok := c.completed[id]; ok {
		return *job, true
	}
	return JobInfo{}, false
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (c *Coordinator) ListJobs(status string, limit int) []JobInfo {
	if limit <= 0 {
		limit = 50
	}

	c.mu.RLock()
	var jobs []JobInfo
	for _, job := range c.active {
		jobs = append(jobs, *job)
	}
	for _, job := range c.completed {
		jobs = append(jobs, *job)
	}
	c.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})

	out := make([]JobInfo, 0, limit)
	for _, job := range jobs {
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job)
		if len(out) == limit {
			break
		}
	}
	return out
}

// --- Health ---

// Health is the rolled-up state of all pipeline components.
type Health struct {
	Status     string            `json:"status"` // "healthy", "degraded", "unhealthy"
	Components map[string]string `json:"components"`
}

// HealthCheck probes every component and rolls the results up: all healthy
// means healthy, fewer than half unhealthy means degraded, otherwise
// unhealthy.
func (c *Coordinator) HealthCheck(ctx context.Context) Health {
	components := map[string]string{}

	if err := c.store.HealthCheck(); err != nil {
		components["storage"] = "unhealthy: " + err.Error()
	} else {
		components["storage"] = "healthy"
	}
	if err := c.proc.HealthCheck(ctx); err != nil {
		components["processor"] = "unhealthy: " + err.Error()
	} else {
		components["processor"] = "healthy"
	}
	if err := c.qc.HealthCheck(ctx); err != nil {
		components["quality"] = "unhealthy: " + err.Error()
	} else {
		components["quality"] = "healthy"
	}

	c.mu.RLock()
	collectorCount := len(c.collectors)
	c.mu.RUnlock()
	if collectorCount == 0 {
		components["collectors"] = "unhealthy: no collectors enabled"
	} else {
		components["collectors"] = "healthy"
	}

	unhealthy := 0
	for _, state := range components {
		if state != "healthy" {
			unhealthy++
		}
	}

	status := "healthy"
	switch {
	case unhealthy == 0:
		status = "healthy"
	case unhealthy*2 < len(components):
		status = "degraded"
	default:
		status = "unhealthy"
	}
	return Health{Status: status, Components: components}
}
