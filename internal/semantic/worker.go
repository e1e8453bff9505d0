package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gleanerhq/gleaner/internal/storage"
)

// JobTypeEmbed is the queue entry created for every stored content record.
const JobTypeEmbed = "embed_content"

// JobStore abstracts the job queue and content lookups the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetContent(id string) (storage.Content, error)
}

// VectorUpserter stores embeddings keyed by content ID.
type VectorUpserter interface {
	Upsert(contentID string, embedding []float32, model string) error
}

// Worker processes embed_content jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder Embedder
	vectors  VectorUpserter
	model    string
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder Embedder, vectors VectorUpserter, model string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		model:    model,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single embed_content job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeEmbed})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

// EmbedPayload is the payload stored for embed_content jobs.
type EmbedPayload struct {
	ContentID string `json:"content_id"`
}

// embedTextLimit caps the text sent to the embedder; summaries are short,
// but the processed-content fallback can be arbitrarily long.
const embedTextLimit = 8000

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload EmbedPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	content, err := w.store.GetContent(payload.ContentID)
	if err != nil {
		return fmt.Errorf("loading content %s: %w", payload.ContentID, err)
	}

	text := content.Summary
	if text == "" {
		text = content.ProcessedContent
	}
	if len(text) > embedTextLimit {
		text = text[:embedTextLimit]
	}
	if text == "" {
		return fmt.Errorf("content %s has no text to embed", content.ID)
	}

	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding content: %w", err)
	}

	if err := w.vectors.Upsert(content.ID, vec, w.model); err != nil {
		return fmt.Errorf("storing vector: %w", err)
	}

	return nil
}
