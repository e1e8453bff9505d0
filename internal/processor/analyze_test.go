package processor

import (
	"strings"
	"testing"

	"github.com/gleanerhq/gleaner/internal/collector"
)

func TestKeywordFallback(t *testing.T) {
	content := "storage storage storage migration migration database the and with from"
	keywords := keywordFallback(content)

	if len(keywords) < 3 {
		t.Fatalf("got %d keywords, want at least 3: %v", len(keywords), keywords)
	}
	if keywords[0] != "storage" {
		t.Errorf("keywords[0] = %q, want storage (highest frequency)", keywords[0])
	}
	if keywords[1] != "migration" {
		t.Errorf("keywords[1] = %q, want migration", keywords[1])
	}
	for _, k := range keywords {
		if stopWords[k] {
			t.Errorf("stop word %q leaked into keywords", k)
		}
		if len(k) < 4 {
			t.Errorf("short word %q leaked into keywords", k)
		}
	}
}

func TestKeywordFallback_Cap(t *testing.T) {
	var sb strings.Builder
	words := []string{
		"alpha", "bravo", "charlie", "delta", "echos", "foxtrot", "golfs",
		"hotel", "india", "juliet", "kilos", "limas", "mikes", "november",
		"oscar", "papas", "quebec", "romeo", "sierra", "tango", "uniform",
		"victor", "whiskey", "xrays", "yankee", "zulus",
	}
	for i, w := range words {
		for j := 0; j <= i; j++ {
			sb.WriteString(w + " ")
		}
	}

	keywords := keywordFallback(sb.String())
	if len(keywords) > 15 {
		t.Errorf("got %d keywords, want at most 15", len(keywords))
	}
}

func TestKeywordFallback_Empty(t *testing.T) {
	if kws := keywordFallback("a an it 123 !!"); kws != nil {
		t.Errorf("got %v, want nil", kws)
	}
}

func TestEntityFallback(t *testing.T) {
	content := "See https://go.dev/doc and mail ops@example.com before 12/31/2026."
	entities := entityFallback(content)

	labels := map[string]string{}
	for _, e := range entities {
		labels[e.Label] = e.Text
		if content[e.Start:e.End] != e.Text {
			t.Errorf("offsets wrong for %q: content[%d:%d] = %q", e.Text, e.Start, e.End, content[e.Start:e.End])
		}
	}

	if !strings.HasPrefix(labels["URL"], "https://go.dev/doc") {
		t.Errorf("URL entity = %q", labels["URL"])
	}
	if labels["EMAIL"] != "ops@example.com" {
		t.Errorf("EMAIL entity = %q", labels["EMAIL"])
	}
	if labels["DATE"] != "12/31/2026" {
		t.Errorf("DATE entity = %q", labels["DATE"])
	}
}

func TestEntityFallback_Cap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("https://example.com/page ")
	}
	if got := len(entityFallback(sb.String())); got > 20 {
		t.Errorf("got %d entities, want at most 20", got)
	}
}

func TestExtractRelationships(t *testing.T) {
	raw := collector.Raw{
		Source:   "file_system",
		Metadata: map[string]string{"directory": "/notes/projects"},
	}
	content := "Linked to [[design-doc]] and [[roadmap]]. See https://example.com. Tagged #planning #planning #golang."

	rels := extractRelationships(raw, content)

	byType := map[string][]Relationship{}
	for _, r := range rels {
		byType[r.Type] = append(byType[r.Type], r)
	}

	if len(byType["belongs_to_folder"]) != 1 || byType["belongs_to_folder"][0].Target != "/notes/projects" {
		t.Errorf("belongs_to_folder = %v", byType["belongs_to_folder"])
	}
	if len(byType["created_by"]) != 1 || byType["created_by"][0].Strength != 1.0 {
		t.Errorf("created_by = %v", byType["created_by"])
	}
	if len(byType["references"]) != 2 {
		t.Errorf("references = %v, want design-doc and roadmap", byType["references"])
	}
	if len(byType["links_to"]) != 1 || byType["links_to"][0].Strength != 0.6 {
		t.Errorf("links_to = %v", byType["links_to"])
	}
	// Duplicate tags collapse to one relationship each.
	if len(byType["tagged_with"]) != 2 {
		t.Errorf("tagged_with = %v, want planning and golang once each", byType["tagged_with"])
	}
}

func TestExtractRelationships_URLCap(t *testing.T) {
	content := strings.Repeat("https://example.com/a ", 10)
	rels := extractRelationships(collector.Raw{}, content)

	links := 0
	for _, r := range rels {
		if r.Type == "links_to" {
			links++
		}
	}
	if links != 5 {
		t.Errorf("got %d links_to relationships, want 5", links)
	}
}
