package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Raw is a single piece of collected content before processing.
// Collectors fill it once and never mutate it afterwards.
type Raw struct {
	Source      string // collector name, e.g. "file_system"
	ID          string // stable identifier within the source (often a path)
	Name        string
	Path        string
	Title       string
	Content     string
	SizeBytes   int64
	CreatedAt   time.Time
	ModifiedAt  time.Time
	CollectedAt time.Time
	Priority    float64 // advisory, 0-10
	Metadata    map[string]string
}

// Collector gathers raw content from one source.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]Raw, error)
}

// Result holds the outcome of one collector in a fan-out run.
type Result struct {
	Source string
	Items  []Raw
	Err    error
}

// CollectAll runs every collector concurrently and returns one Result per
// collector in input order. A failing collector yields an empty item list
// and its error; it never cancels its siblings.
func CollectAll(ctx context.Context, collectors []Collector) []Result {
	results := make([]Result, len(collectors))

	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func(i int, c Collector) {
			defer wg.Done()
			items, err := c.Collect(ctx)
			if err != nil {
				slog.Warn("collector failed", "source", c.Name(), "error", err)
				results[i] = Result{Source: c.Name(), Err: err}
				return
			}
			results[i] = Result{Source: c.Name(), Items: items}
		}(i, c)
	}
	wg.Wait()

	return results
}
