package processor

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gleanerhq/gleaner/internal/collector"
	"github.com/gleanerhq/gleaner/internal/config"
)

func testProcessor() *Processor {
	p := New(config.ProcessingConfig{
		MinContentLength:   50,
		MaxSummaryLength:   200,
		BatchSize:          10,
		ParallelProcessing: true,
	})
	p.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestProcessOne_Basic(t *testing.T) {
	p := testProcessor()
	raw := collector.Raw{
		Source:      "file_system",
		ID:          "/notes/project.md",
		Name:        "project.md",
		Path:        "/notes/project.md",
		Title:       "Project",
		Content:     "Planning notes for the storage migration. The key decision is to keep SQLite. Analysis of alternatives showed no clear winner.",
		SizeBytes:   120,
		CollectedAt: time.Date(2026, 5, 30, 8, 0, 0, 0, time.UTC),
		Metadata:    map[string]string{"directory": "/notes"},
	}

	pc, err := p.ProcessOne(context.Background(), raw)
	if err != nil {
		t.Fatalf("ProcessOne() error = %v", err)
	}

	if pc.ContentID != raw.ID {
		t.Errorf("ContentID = %q, want %q", pc.ContentID, raw.ID)
	}
	if pc.OriginalContent != raw.Content {
		t.Error("OriginalContent not preserved")
	}
	if len(pc.Keywords) == 0 {
		t.Error("no keywords extracted")
	}
	if len(pc.Keywords) > 15 {
		t.Errorf("got %d keywords, want at most 15", len(pc.Keywords))
	}
	if pc.QualityScore < 0 || pc.QualityScore > 10 {
		t.Errorf("QualityScore = %g, want within [0,10]", pc.QualityScore)
	}
	if pc.Metadata["source"] != "file_system" {
		t.Errorf("metadata source = %q", pc.Metadata["source"])
	}
	if pc.Metadata["word_count"] == "" || pc.Metadata["language"] == "" {
		t.Errorf("derived metadata incomplete: %v", pc.Metadata)
	}
}

func TestProcessOne_Deterministic(t *testing.T) {
	p := testProcessor()
	raw := collector.Raw{
		Source:  "file_system",
		ID:      "doc-1",
		Content: "Deterministic processing test. Key facts stay stable between runs. Important conclusions should not move around.",
	}

	a, err := p.ProcessOne(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.ProcessOne(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated processing differs:\n%+v\n%+v", a, b)
	}
}

func TestProcessOne_EmptyContent(t *testing.T) {
	p := testProcessor()
	if _, err := p.ProcessOne(context.Background(), collector.Raw{ID: "x", Content: "   \n "}); err == nil {
		t.Error("ProcessOne() error = nil, want error for empty content")
	}
}

func TestProcessOne_GeneratedID(t *testing.T) {
	p := testProcessor()
	pc, err := p.ProcessOne(context.Background(), collector.Raw{
		Content: "Content without an identifier gets a stable hash-derived one assigned.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pc.ContentID) != 16 {
		t.Errorf("ContentID = %q, want 16-char hash", pc.ContentID)
	}
}

func TestProcessOne_ShortContentGetsTitle(t *testing.T) {
	p := testProcessor()
	pc, err := p.ProcessOne(context.Background(), collector.Raw{
		ID:      "short",
		Title:   "Database migration checklist",
		Content: "remember the indexes",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(pc.ProcessedContent, "Database migration checklist") {
		t.Errorf("title not prepended for short content: %q", pc.ProcessedContent)
	}
}

func TestProcessBatch_FailureIsolated(t *testing.T) {
	p := testProcessor()
	items := []collector.Raw{
		{ID: "ok-1", Content: "First document with plenty of reasonable content for processing."},
		{ID: "bad", Content: "   "},
		{ID: "ok-2", Content: "Second document, also fine, and longer than the minimum threshold."},
	}

	results, err := p.ProcessBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ContentID != "ok-1" || results[1].ContentID != "ok-2" {
		t.Errorf("results out of order: %s, %s", results[0].ContentID, results[1].ContentID)
	}
}

func TestProcessBatch_Empty(t *testing.T) {
	p := testProcessor()
	results, err := p.ProcessBatch(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("ProcessBatch(nil) = %v, %v, want nil, nil", results, err)
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	content := "# Weekly TODO\n- review storage design\n- write migration plan\n- prepare demo for the team meeting"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(config.ProcessingConfig{MinContentLength: 50, MaxSummaryLength: 200, BatchSize: 10})
	pc, err := p.ProcessFile(context.Background(), path, map[string]string{"requested_by": "api"})
	if err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	if pc.ContentID != path {
		t.Errorf("ContentID = %q, want %q", pc.ContentID, path)
	}
	if pc.Metadata["source"] != "file_system" {
		t.Errorf("source = %q", pc.Metadata["source"])
	}
}

func TestProcessFile_Missing(t *testing.T) {
	p := testProcessor()
	if _, err := p.ProcessFile(context.Background(), "/nonexistent/nope.txt", nil); err == nil {
		t.Error("ProcessFile() error = nil, want error")
	}
}

func TestHealthCheck(t *testing.T) {
	p := testProcessor()
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// mockTagger implements Tagger for testing.
type mockTagger struct {
	keywords []string
	entities []Entity
	err      error
}

func (m *mockTagger) Keywords(ctx context.Context, text string, max int) ([]string, error) {
	return m.keywords, m.err
}

func (m *mockTagger) Entities(ctx context.Context, text string) ([]Entity, error) {
	return m.entities, m.err
}

func TestProcessOne_TaggerPreferred(t *testing.T) {
	p := testProcessor().WithTagger(&mockTagger{
		keywords: []string{"storage", "migration"},
		entities: []Entity{{Text: "SQLite", Label: "PRODUCT", Confidence: 0.95}},
	})

	pc, err := p.ProcessOne(context.Background(), collector.Raw{
		ID:      "tagged",
		Content: "A document about storage migration plans and all the surrounding analysis work.",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(pc.Keywords, []string{"storage", "migration"}) {
		t.Errorf("Keywords = %v, want tagger output", pc.Keywords)
	}
	if len(pc.Entities) != 1 || pc.Entities[0].Label != "PRODUCT" {
		t.Errorf("Entities = %v, want tagger output", pc.Entities)
	}
}

func TestProcessOne_TaggerFailureFallsBack(t *testing.T) {
	p := testProcessor().WithTagger(&mockTagger{err: context.DeadlineExceeded})

	pc, err := p.ProcessOne(context.Background(), collector.Raw{
		ID:      "fallback",
		Content: "Fallback extraction still produces keywords from meaningful document content about planning and analysis.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pc.Keywords) == 0 {
		t.Error("fallback produced no keywords")
	}
}
