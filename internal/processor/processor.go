package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gleanerhq/gleaner/internal/collector"
	"github.com/gleanerhq/gleaner/internal/config"
)

// ContentType classifies processed content.
type ContentType string

const (
	TypeText       ContentType = "text"
	TypeCode       ContentType = "code"
	TypeAcademic   ContentType = "academic"
	TypeTechnical  ContentType = "technical"
	TypePersonal   ContentType = "personal"
	TypeReference  ContentType = "reference"
	TypeMultimedia ContentType = "multimedia"
)

// Entity is a span of interest found in the content.
type Entity struct {
	Text        string  `json:"text"`
	Label       string  `json:"label"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// Relationship links content to something outside it (a folder, a source,
// a referenced note, a URL, a tag).
type Relationship struct {
	Type        string  `json:"type"`
	Target      string  `json:"target"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description,omitempty"`
}

// ProcessedContent is the full analysis of one raw item. It is built once
// and never mutated afterwards.
type ProcessedContent struct {
	ContentID        string            `json:"content_id"`
	OriginalContent  string            `json:"original_content"`
	ProcessedContent string            `json:"processed_content"`
	ContentType      ContentType       `json:"content_type"`
	Keywords         []string          `json:"keywords"`
	Entities         []Entity          `json:"entities"`
	Relationships    []Relationship    `json:"relationships"`
	Summary          string            `json:"summary"`
	Topics           []string          `json:"topics"`
	QualityScore     float64           `json:"quality_score"`
	Metadata         map[string]string `json:"metadata"`
}

// Tagger is an optional NLP accelerator for keyword and entity extraction.
// When nil, the built-in frequency and pattern analysis is used.
type Tagger interface {
	Keywords(ctx context.Context, text string, max int) ([]string, error)
	Entities(ctx context.Context, text string) ([]Entity, error)
}

const (
	maxKeywords = 15
	maxEntities = 20
	maxTopics   = 5
)

// Processor turns raw collected content into analyzed ProcessedContent.
type Processor struct {
	cfg    config.ProcessingConfig
	tagger Tagger
	now    func() time.Time
	logger *slog.Logger
}

func New(cfg config.ProcessingConfig) *Processor {
	return &Processor{
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithTagger returns a copy of the processor that uses t for keyword and
// entity extraction, falling back to the built-in analysis when t fails.
func (p *Processor) WithTagger(t Tagger) *Processor {
	clone := *p
	clone.tagger = t
	return &clone
}

// ProcessOne analyzes a single raw item. Deterministic for the same input
// (modulo the processing_time metadata field).
func (p *Processor) ProcessOne(ctx context.Context, raw collector.Raw) (ProcessedContent, error) {
	start := p.now()

	content := raw.Content
	if strings.TrimSpace(content) == "" {
		return ProcessedContent{}, fmt.Errorf("empty content for %s", raw.ID)
	}

	// Short items get their title prepended so classification and keyword
	// extraction have something to work with.
	if len(content) < p.cfg.MinContentLength && raw.Title != "" {
		content = raw.Title + "\n" + content
	}

	cleaned := cleanContent(content)

	contentID := raw.ID
	if contentID == "" {
		contentID = hashID(cleaned)
	}

	contentType := classify(raw, cleaned)

	keywords := p.extractKeywords(ctx, cleaned)
	entities := p.extractEntities(ctx, cleaned)
	relationships := extractRelationships(raw, cleaned)
	summary := p.summarize(cleaned)
	topics := extractTopics(cleaned, keywords)
	score := p.scoreQuality(raw, cleaned)

	pc := ProcessedContent{
		ContentID:        contentID,
		OriginalContent:  raw.Content,
		ProcessedContent: cleaned,
		ContentType:      contentType,
		Keywords:         keywords,
		Entities:         entities,
		Relationships:    relationships,
		Summary:          summary,
		Topics:           topics,
		QualityScore:     score,
		Metadata:         p.buildMetadata(raw, cleaned, start),
	}
	return pc, nil
}

// ProcessBatch analyzes items concurrently. A failing item is logged and
// dropped; successes keep their input order.
func (p *Processor) ProcessBatch(ctx context.Context, items []collector.Raw) ([]ProcessedContent, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]*ProcessedContent, len(items))

	g, ctx := errgroup.WithContext(ctx)
	limit := 4
	if !p.cfg.ParallelProcessing {
		limit = 1
	}
	g.SetLimit(limit)

	for i, raw := range items {
		g.Go(func() error {
			pc, err := p.ProcessOne(ctx, raw)
			if err != nil {
				p.logger.Warn("processing item failed", "id", raw.ID, "source", raw.Source, "error", err)
				return nil
			}
			results[i] = &pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ProcessedContent, 0, len(items))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// ProcessFile reads and analyzes a single file from disk.
func (p *Processor) ProcessFile(ctx context.Context, path string, extra map[string]string) (ProcessedContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProcessedContent{}, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return ProcessedContent{}, err
	}

	name := filepath.Base(path)
	raw := collector.Raw{
		Source:      "file_system",
		ID:          path,
		Name:        name,
		Path:        path,
		Title:       strings.TrimSuffix(name, filepath.Ext(name)),
		Content:     string(data),
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
		CollectedAt: p.now().UTC(),
		Metadata:    map[string]string{},
	}
	for k, v := range extra {
		raw.Metadata[k] = v
	}
	return p.ProcessOne(ctx, raw)
}

// HealthCheck verifies the processing pipeline end to end on a canned item.
func (p *Processor) HealthCheck(ctx context.Context) error {
	raw := collector.Raw{
		Source:      "health_check",
		ID:          "health_check",
		Title:       "Health check",
		Content:     "This is a health check document with enough content to pass through every analysis stage of the processor.",
		CollectedAt: p.now().UTC(),
	}
	_, err := p.ProcessOne(ctx, raw)
	return err
}

func (p *Processor) extractKeywords(ctx context.Context, content string) []string {
	if p.tagger != nil {
		kws, err := p.tagger.Keywords(ctx, content, maxKeywords)
		if err == nil && len(kws) > 0 {
			if len(kws) > maxKeywords {
				kws = kws[:maxKeywords]
			}
			return kws
		}
		if err != nil {
			p.logger.Warn("tagger keywords failed, using fallback", "error", err)
		}
	}
	return keywordFallback(content)
}

func (p *Processor) extractEntities(ctx context.Context, content string) []Entity {
	if p.tagger != nil {
		ents, err := p.tagger.Entities(ctx, content)
		if err == nil && len(ents) > 0 {
			if len(ents) > maxEntities {
				ents = ents[:maxEntities]
			}
			return ents
		}
		if err != nil {
			p.logger.Warn("tagger entities failed, using fallback", "error", err)
		}
	}
	return entityFallback(content)
}

func (p *Processor) buildMetadata(raw collector.Raw, content string, start time.Time) map[string]string {
	md := map[string]string{
		"source": raw.Source,
	}
	if raw.Name != "" {
		md["name"] = raw.Name
	}
	if raw.Path != "" {
		md["path"] = raw.Path
	}
	if raw.Title != "" {
		md["title"] = raw.Title
	}
	if raw.SizeBytes > 0 {
		md["size"] = strconv.FormatInt(raw.SizeBytes, 10)
	}
	if !raw.CreatedAt.IsZero() {
		md["created_time"] = raw.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !raw.ModifiedAt.IsZero() {
		md["modified_time"] = raw.ModifiedAt.UTC().Format(time.RFC3339)
	}
	if !raw.CollectedAt.IsZero() {
		md["collection_time"] = raw.CollectedAt.UTC().Format(time.RFC3339)
	}

	words := strings.Fields(content)
	md["word_count"] = strconv.Itoa(len(words))
	md["character_count"] = strconv.Itoa(len(content))
	md["line_count"] = strconv.Itoa(strings.Count(content, "\n") + 1)
	md["has_urls"] = strconv.FormatBool(urlPattern.MatchString(content))
	md["has_emails"] = strconv.FormatBool(emailPattern.MatchString(content))
	md["has_code"] = strconv.FormatBool(strings.Contains(content, "```") || strings.Contains(content, "def ") || strings.Contains(content, "function"))
	md["has_links"] = strconv.FormatBool(strings.Contains(content, "[[") || urlPattern.MatchString(content))
	md["language"] = detectLanguage(content)
	md["processing_time"] = start.UTC().Format(time.RFC3339)

	return md
}

// hashID derives a stable short identifier from content.
func hashID(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}
