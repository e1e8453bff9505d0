package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// SearchContent finds stored content whose title, summary, or keywords match
// the query, narrowed by the given filters. Results are ordered by quality
// score, then recency. An empty query matches everything the filters allow.
func (s *Store) SearchContent(query string, filters SearchFilters, limit int) ([]ContentSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var conds []string
	var args []interface{}

	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		conds = append(conds, `(LOWER(c.title) LIKE ? OR LOWER(c.summary) LIKE ? OR c.id IN (
			SELECT content_id FROM content_keywords WHERE LOWER(keyword) LIKE ?))`)
		args = append(args, pattern, pattern, pattern)
	}
	if filters.ContentType != "" {
		conds = append(conds, "c.content_type = ?")
		args = append(args, filters.ContentType)
	}
	if filters.Source != "" {
		conds = append(conds, "c.source = ?")
		args = append(args, filters.Source)
	}
	if filters.QualityLevel != "" {
		conds = append(conds, "c.quality_level = ?")
		args = append(args, filters.QualityLevel)
	}
	if filters.MinQualityScore > 0 {
		conds = append(conds, "c.quality_score >= ?")
		args = append(args, filters.MinQualityScore)
	}
	if filters.Topic != "" {
		conds = append(conds, "c.id IN (SELECT content_id FROM content_topics WHERE topic = ?)")
		args = append(args, filters.Topic)
	}

	q := `SELECT c.id, c.title, c.content_type, c.source, c.summary,
		c.quality_score, c.quality_level, c.word_count, c.processing_time
		FROM content c`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY c.quality_score DESC, c.processing_time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching content: %w", err)
	}
	defer rows.Close()

	var results []ContentSummary
	for rows.Next() {
		var r ContentSummary
		var processed sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &r.ContentType, &r.Source, &r.Summary,
			&r.QualityScore, &r.QualityLevel, &r.WordCount, &processed); err != nil {
			return nil, err
		}
		r.ProcessingTime = scanTime(processed)
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecentContent returns the most recently processed content summaries.
func (s *Store) RecentContent(limit int) ([]ContentSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT c.id, c.title, c.content_type, c.source, c.summary,
		c.quality_score, c.quality_level, c.word_count, c.processing_time
		FROM content c ORDER BY c.processing_time DESC, c.id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent content: %w", err)
	}
	defer rows.Close()

	var results []ContentSummary
	for rows.Next() {
		var r ContentSummary
		var processed sql.NullString
		if err := rows.Scan(&r.ID, &r.Title, &r.ContentType, &r.Source, &r.Summary,
			&r.QualityScore, &r.QualityLevel, &r.WordCount, &processed); err != nil {
			return nil, err
		}
		r.ProcessingTime = scanTime(processed)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ExportContent writes every stored record as one JSON object per line.
func (s *Store) ExportContent(w io.Writer) error {
	rows, err := s.db.Query(`SELECT id FROM content ORDER BY processing_time ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("listing content for export: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	enc := json.NewEncoder(w)
	for _, id := range ids {
		c, err := s.GetContent(id)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", id, err)
		}
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encoding %s: %w", id, err)
		}
	}
	return nil
}

// Cleanup deletes low-value content: anything below floor, plus anything
// older than cutoff that never reached a solid quality score. Child rows
// cascade. Returns the number of content records removed.
func (s *Store) Cleanup(floor float64, cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM content
		WHERE quality_score < ?
		   OR (processing_time < ? AND quality_score < 5.0)`,
		floor, cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
