package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gleanerhq/gleaner/internal/coordinator"
	"github.com/gleanerhq/gleaner/internal/quality"
	"github.com/gleanerhq/gleaner/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP API needs.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Token       string
}

// NewHandler returns the ingestion and knowledge REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Health stays unauthenticated for probes.
	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/ingest/run", handleRunIngestion(deps))
		r.Post("/ingest/files", handleIngestFiles(deps))
		r.Post("/ingest/cloud-sync", handleCloudSync(deps))
		r.Get("/jobs", handleListJobs(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Get("/search", handleSearch(deps))
		r.Get("/knowledge/{id}", handleGetKnowledge(deps))
		r.Get("/stats", handleStats(deps))
		r.Get("/collections", handleListCollections(deps))
		r.Delete("/collections/{name}", handleDeleteCollection(deps))
		r.Get("/export", handleExport(deps))
		r.Post("/cleanup", handleCleanup(deps))
		r.Put("/config", handleUpdateConfig(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := deps.Coordinator.HealthCheck(r.Context())

		code := http.StatusOK
		if health.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(health)
	}
}

type runIngestionRequest struct {
	// Since restricts the run to content modified after this time (RFC3339).
	// Empty means a full run.
	Since string `json:"since"`
}

func handleRunIngestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		// An empty body means a full run.
		var req runIngestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var stats coordinator.Stats
		var err error
		if req.Since != "" {
			since, parseErr := time.Parse(time.RFC3339, req.Since)
			if parseErr != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since timestamp: %v", parseErr)
				return
			}
			stats, err = deps.Coordinator.RunIncremental(r.Context(), since)
		} else {
			stats, err = deps.Coordinator.RunFullIngestion(r.Context())
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingestion failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

type ingestFilesRequest struct {
	Paths []string `json:"paths"`
}

// singleFileResponse is the quality report plus the job ID, so the caller
// can look the job up later.
type singleFileResponse struct {
	JobID string `json:"job_id"`
	quality.Report
}

type batchFilesResponse struct {
	JobID string `json:"job_id"`
	coordinator.Stats
}

func handleIngestFiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestFilesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Paths) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "paths is required and must not be empty")
			return
		}

		if len(req.Paths) == 1 {
			report, job, err := deps.Coordinator.ProcessSingleFile(r.Context(), req.Paths[0])
			if err != nil {
				httpError(w, http.StatusUnprocessableEntity, "ingestion_error", "%v (job %s)", err, job.ID)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(singleFileResponse{JobID: job.ID, Report: report})
			return
		}

		stats, job, err := deps.Coordinator.ProcessBatchFiles(r.Context(), req.Paths)
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "ingestion_error", "%v (job %s)", err, job.ID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(batchFilesResponse{JobID: job.ID, Stats: stats})
	}
}

func handleCloudSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Coordinator.SyncCloudDrives(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "cloud sync failed: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		limit := parseIntParam(r, "limit", 50, 200)

		jobs := deps.Coordinator.ListJobs(status, limit)
		if jobs == nil {
			jobs = []coordinator.JobInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jobs)
	}
}

func handleGetJob(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, ok := deps.Coordinator.Job(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

func handleSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := storage.SearchFilters{
			ContentType:  q.Get("content_type"),
			Source:       q.Get("source"),
			QualityLevel: q.Get("quality_level"),
			Topic:        q.Get("topic"),
		}
		if raw := q.Get("min_score"); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid min_score: %v", err)
				return
			}
			filters.MinQualityScore = score
		}
		limit := parseIntParam(r, "limit", 20, 100)

		results, err := deps.Coordinator.SearchKnowledge(q.Get("q"), filters, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		if results == nil {
			results = []storage.ContentSummary{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

func handleGetKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		content, err := deps.Coordinator.GetKnowledge(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "content not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load content: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(content)
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Coordinator.Statistics()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute statistics: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func handleListCollections(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collections, err := deps.Coordinator.ListCollections()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list collections: %v", err)
			return
		}
		if collections == nil {
			collections = []storage.Collection{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(collections)
	}
}

func handleDeleteCollection(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		err := deps.Coordinator.DeleteCollection(name)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "collection not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete collection: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", `attachment; filename="knowledge_export.jsonl"`)

		if err := deps.Coordinator.ExportKnowledge(w); err != nil {
			// Headers are gone; all we can do is log through the error body.
			fmt.Fprintf(w, `{"error":%q}`+"\n", err.Error())
		}
	}
}

type cleanupRequest struct {
	MinScore   float64 `json:"min_score"`
	MaxAgeDays int     `json:"max_age_days"`
}

func handleCleanup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		req := cleanupRequest{MinScore: 2.0, MaxAgeDays: 180}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		removed, err := deps.Coordinator.CleanupKnowledge(req.MinScore, time.Duration(req.MaxAgeDays)*24*time.Hour)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "cleanup failed: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"removed": removed})
	}
}

func handleUpdateConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		if _, err := deps.Coordinator.UpdateConfig(raw); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
