package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gleanerhq/gleaner/internal/config"
)

// DigitalLibrary looks up book metadata and descriptions from a books API
// (an Open Library compatible search endpoint) for configured queries.
type DigitalLibrary struct {
	cfg      config.DigitalLibraryConfig
	queries  []string
	client   *http.Client
	priority PriorityPolicy
	logger   *slog.Logger
}

func NewDigitalLibrary(cfg config.DigitalLibraryConfig, client *http.Client, queries []string) *DigitalLibrary {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DigitalLibrary{
		cfg:      cfg,
		queries:  queries,
		client:   client,
		priority: NewPriorityPolicy(),
		logger:   slog.Default(),
	}
}

func (l *DigitalLibrary) Name() string { return "digital_library" }

type librarySearchResponse struct {
	Docs []struct {
		Key          string   `json:"key"`
		Title        string   `json:"title"`
		AuthorName   []string `json:"author_name"`
		FirstPublish int      `json:"first_publish_year"`
		Subject      []string `json:"subject"`
	} `json:"docs"`
}

func (l *DigitalLibrary) Collect(ctx context.Context) ([]Raw, error) {
	if !l.cfg.Enabled || l.cfg.APIBaseURL == "" {
		return nil, nil
	}

	var items []Raw
	for _, query := range l.queries {
		found, err := l.search(ctx, query)
		if err != nil {
			l.logger.Warn("library search failed", "query", query, "error", err)
			continue
		}
		items = append(items, found...)
		if l.cfg.MaxBooks > 0 && len(items) >= l.cfg.MaxBooks {
			items = items[:l.cfg.MaxBooks]
			break
		}
	}
	return items, nil
}

func (l *DigitalLibrary) search(ctx context.Context, query string) ([]Raw, error) {
	u := fmt.Sprintf("%s/search.json?q=%s&limit=%d",
		strings.TrimSuffix(l.cfg.APIBaseURL, "/"), url.QueryEscape(query), l.cfg.MaxBooks)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying library api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("library api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("reading library response: %w", err)
	}

	var result librarySearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing library response: %w", err)
	}

	var items []Raw
	for _, doc := range result.Docs {
		if doc.Title == "" {
			continue
		}
		content := l.describe(doc.Title, doc.AuthorName, doc.FirstPublish, doc.Subject)
		items = append(items, Raw{
			Source:      l.Name(),
			ID:          doc.Key,
			Name:        doc.Title,
			Title:       doc.Title,
			Content:     content,
			SizeBytes:   int64(len(content)),
			CollectedAt: time.Now().UTC(),
			Priority:    l.priority.Score("ebook", int64(len(content)), time.Time{}),
			Metadata: map[string]string{
				"category": "ebook",
				"query":    query,
				"authors":  strings.Join(doc.AuthorName, ", "),
			},
		})
	}
	return items, nil
}

func (l *DigitalLibrary) describe(title string, authors []string, year int, subjects []string) string {
	var sb strings.Builder
	sb.WriteString(title)
	if len(authors) > 0 {
		sb.WriteString("\nby ")
		sb.WriteString(strings.Join(authors, ", "))
	}
	if year > 0 {
		fmt.Fprintf(&sb, "\nFirst published %d", year)
	}
	if len(subjects) > 0 {
		if len(subjects) > 10 {
			subjects = subjects[:10]
		}
		sb.WriteString("\nSubjects: ")
		sb.WriteString(strings.Join(subjects, ", "))
	}
	return sb.String()
}
