package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gleanerhq/gleaner/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestIngestRun(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest/run": `{"total_collected":3,"total_processed":3,"total_stored":2,"total_rejected":1,"by_source":{"file_system":{"items":3,"errors":0}},"by_quality_level":{"good":2}}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/ingest/run", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var stats struct {
		TotalStored int `json:"total_stored"`
	}
	if err := decodeJSON(resp, &stats); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if stats.TotalStored != 2 {
		t.Errorf("total_stored = %d, want 2", stats.TotalStored)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", ts.requests[0].Auth)
	}
}

func TestIngestFiles_SendsPaths(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest/files": `{"job_id":"j-1","content_id":"c-1","score":7.5,"level":"good","approved":true}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/ingest/files", map[string]any{"paths": []string{"/tmp/notes.md"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report struct {
		ContentID string `json:"content_id"`
		Approved  bool   `json:"approved"`
	}
	if err := decodeJSON(resp, &report); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !report.Approved || report.ContentID != "c-1" {
		t.Errorf("report = %+v", report)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	paths, ok := body["paths"].([]any)
	if !ok || len(paths) != 1 || paths[0] != "/tmp/notes.md" {
		t.Errorf("body.paths = %v", body["paths"])
	}
}

func TestSearch_URLEncoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `[]`,
	})

	client := ts.client()
	params := url.Values{}
	params.Set("q", "go & rust notes")
	params.Set("limit", "20")

	resp, err := client.get(ctx, "/search?"+params.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, "& rust") {
		t.Errorf("query not URL-encoded: %q", reqPath)
	}
	if !strings.Contains(reqPath, "q=go+%26+rust+notes") {
		t.Errorf("unexpected encoded path: %q", reqPath)
	}
}

func TestSearch_DecodesSummaries(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /search": `[{"id":"s-1","title":"Goroutine notes","content_type":"technical","source":"file_system","summary":"notes on goroutines","quality_score":8.5,"quality_level":"excellent","word_count":420}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/search?q=goroutine")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []struct {
		ID           string  `json:"id"`
		Title        string  `json:"title"`
		QualityScore float64 `json:"quality_score"`
	}
	if err := decodeJSON(resp, &results); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Goroutine notes" || results[0].QualityScore != 8.5 {
		t.Errorf("result = %+v", results[0])
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer srv.Close()

	client := &apiClient{
		baseURL:    srv.URL,
		token:      "bad-token",
		httpClient: srv.Client(),
	}

	resp, err := client.get(ctx, "/stats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestCleanup_SendsDefaults(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /cleanup": `{"removed":4}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/cleanup", map[string]any{"min_score": 2.0, "max_age_days": 180})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]int
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["removed"] != 4 {
		t.Errorf("removed = %d, want 4", result["removed"])
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["min_score"] != 2.0 {
		t.Errorf("min_score = %v, want 2.0", body["min_score"])
	}
}

func TestCollectionsDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /collections/reading-list": `{"status":"deleted"}`,
	})

	client := ts.client()
	resp, err := client.delete(ctx, "/collections/reading-list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["status"] != "deleted" {
		t.Errorf("status = %q, want deleted", result["status"])
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestIngestFilesCommand_RequiresArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest", "files"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Storage.StoragePath = "/tmp/gleaner"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
		if k.Key == "server.token" {
			t.Error("ShowAll must not expose server.token")
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}

func TestConfigSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := config.SetKeyFile(path, "processing.batch_size", "25"); err != nil {
		t.Fatalf("SetKeyFile: %v", err)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Processing.BatchSize != 25 {
		t.Errorf("batch_size = %d, want 25", cfg.Processing.BatchSize)
	}

	// Unknown keys are rejected.
	if err := config.SetKeyFile(path, "bogus.key", "1"); err == nil {
		t.Error("expected error for unknown key")
	}

	// Secrets cannot be written to the file.
	if err := config.SetKeyFile(path, "server.token", "abc"); err == nil {
		t.Error("expected error for secret key")
	}
}

func TestByteLabel(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := byteLabel(tt.n); got != tt.want {
			t.Errorf("byteLabel(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestLevelColor(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"excellent", colorGreen},
		{"good", colorGreen},
		{"acceptable", colorYellow},
		{"poor", colorRed},
		{"rejected", colorRed},
		{"", colorReset},
	}
	for _, tt := range tests {
		if got := levelColor(tt.level); got != tt.want {
			t.Errorf("levelColor(%q) = %q, want %q", tt.level, got, tt.want)
		}
	}
}
