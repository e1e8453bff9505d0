package quality

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gleanerhq/gleaner/internal/config"
	"github.com/gleanerhq/gleaner/internal/processor"
)

// Level buckets a quality score.
type Level string

const (
	LevelExcellent  Level = "excellent"
	LevelGood       Level = "good"
	LevelAcceptable Level = "acceptable"
	LevelPoor       Level = "poor"
	LevelRejected   Level = "rejected"
)

// LevelForScore maps a score in [0,10] to its level.
func LevelForScore(score float64) Level {
	switch {
	case score >= 8:
		return LevelExcellent
	case score >= 6:
		return LevelGood
	case score >= 4:
		return LevelAcceptable
	case score >= 2:
		return LevelPoor
	default:
		return LevelRejected
	}
}

// Issue is one problem found during validation.
type Issue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"` // "low", "medium", "high"
}

// Report is the outcome of validating one item.
type Report struct {
	ContentID   string            `json:"content_id"`
	Level       Level             `json:"level"`
	Score       float64           `json:"score"`
	Approved    bool              `json:"approved"`
	Issues      []Issue           `json:"issues"`
	Suggestions []string          `json:"suggestions"`
	Metadata    map[string]string `json:"metadata"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Item is the canonical validation input. Every producer converts into this
// struct at the boundary; the controller never inspects producer types.
type Item struct {
	ContentID string
	Content   string
	Name      string
	Source    string
	Metadata  map[string]string
}

// ItemFromProcessed converts processor output into a validation item.
func ItemFromProcessed(pc processor.ProcessedContent) Item {
	md := pc.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return Item{
		ContentID: pc.ContentID,
		Content:   pc.ProcessedContent,
		Name:      md["name"],
		Source:    md["source"],
		Metadata:  md,
	}
}

// Controller validates content across seven dimensions and tracks content
// hashes for duplicate detection. Safe for concurrent use.
type Controller struct {
	cfg    config.QualityControlConfig
	dedup  *dedupIndex
	now    func() time.Time
	logger *slog.Logger
}

func NewController(cfg config.QualityControlConfig) *Controller {
	return &Controller{
		cfg:    cfg,
		dedup:  newDedupIndex(cfg.DuplicateThreshold),
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Validate scores one item. The combined score starts at 10: the length and
// duplication dimensions subtract their deficit, every other dimension caps
// the running score at its own value. Hashes of non-rejected content are
// recorded for future duplicate checks.
func (c *Controller) Validate(ctx context.Context, item Item) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	score := 10.0
	var issues []Issue

	lengthScore, lengthIssues := c.checkLength(item)
	score -= 10 - lengthScore
	issues = append(issues, lengthIssues...)

	dupScore, dupIssues := c.checkDuplication(item)
	score -= 10 - dupScore
	issues = append(issues, dupIssues...)

	for _, dim := range []func(Item) (float64, []Issue){
		c.checkQuality,
		c.checkFormat,
		c.checkDensity,
		c.checkMetadata,
		c.checkSource,
	} {
		dimScore, dimIssues := dim(item)
		score = math.Min(score, dimScore)
		issues = append(issues, dimIssues...)
	}

	if score < 0 {
		score = 0
	}
	score = math.Round(score*100) / 100

	level := LevelForScore(score)
	if level != LevelRejected {
		c.dedup.record(item.Content)
	}

	return Report{
		ContentID:   item.ContentID,
		Level:       level,
		Score:       score,
		Approved:    score >= c.cfg.MinQualityScore,
		Issues:      issues,
		Suggestions: suggestions(issues),
		Metadata: map[string]string{
			"content_length": strconv.Itoa(len(item.Content)),
			"content_hash":   normalizedHash(item.Content),
			"source":         item.Source,
		},
		Timestamp: c.now().UTC(),
	}, nil
}

// Storable reports whether the content may be persisted. Approval alone is
// not enough: a floor below 2 would approve rejected-level content, and
// rejected content must never reach storage.
func (r Report) Storable() bool {
	return r.Approved && r.Level != LevelRejected
}

// ValidateBatch validates items concurrently with per-item isolation. The
// returned slice is parallel to items: the entry for an item whose
// validation failed is nil, so callers never pair a report with the wrong
// item. Failures are logged.
func (c *Controller) ValidateBatch(ctx context.Context, items []Item) ([]*Report, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]*Report, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range items {
		g.Go(func() error {
			report, err := c.Validate(ctx, item)
			if err != nil {
				c.logger.Warn("validation failed", "content_id", item.ContentID, "error", err)
				return nil
			}
			results[i] = &report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// HealthCheck validates a canned item end to end without recording its hash.
func (c *Controller) HealthCheck(ctx context.Context) error {
	probe := Item{
		ContentID: "health_check",
		Content:   "Health check content with enough substance to pass through every validation dimension cleanly.",
		Source:    "health_check",
		Metadata: map[string]string{
			"source":          "health_check",
			"collection_time": c.now().UTC().Format(time.RFC3339),
		},
	}
	_, err := c.Validate(ctx, probe)
	return err
}

// suggestionRules maps issue-type fragments to remediation advice.
var suggestionRules = []struct {
	match      string
	suggestion string
}{
	{"too_short", "Combine with related content or skip collection of fragments this small."},
	{"too_long", "Split the content into smaller focused documents."},
	{"duplicate", "Remove the duplicate or merge it with the original."},
	{"garbled", "Re-extract the content from its original source."},
	{"repetition", "Deduplicate repeated lines before ingestion."},
	{"encoding", "Fix the text encoding at the source."},
	{"coherence", "Review sentence structure; the text may be auto-generated or corrupted."},
	{"format", "Normalize formatting before ingestion."},
	{"density", "Content carries little unique information; consider filtering it out."},
	{"metadata", "Populate the missing metadata fields at collection time."},
	{"source", "Verify the source or add it to the trusted list."},
	{"spam", "Blocklist this source."},
}

func suggestions(issues []Issue) []string {
	var out []string
	seen := map[string]bool{}
	for _, issue := range issues {
		for _, rule := range suggestionRules {
			if !seen[rule.suggestion] && containsFold(issue.Type, rule.match) {
				seen[rule.suggestion] = true
				out = append(out, rule.suggestion)
			}
		}
	}
	return out
}
