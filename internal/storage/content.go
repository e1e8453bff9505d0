package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gleanerhq/gleaner/internal/processor"
	"github.com/gleanerhq/gleaner/internal/quality"
)

// FromProcessed assembles a storable Content record from processor output and
// its quality report.
func FromProcessed(pc processor.ProcessedContent, report quality.Report) Content {
	md := pc.Metadata
	if md == nil {
		md = map[string]string{}
	}

	c := Content{
		ID:               pc.ContentID,
		Title:            md["title"],
		ContentType:      string(pc.ContentType),
		Source:           md["source"],
		Path:             md["path"],
		Summary:          pc.Summary,
		ProcessedContent: pc.ProcessedContent,
		OriginalContent:  pc.OriginalContent,
		QualityScore:     report.Score,
		QualityLevel:     string(report.Level),
		Language:         md["language"],
		Metadata:         md,
		Keywords:         pc.Keywords,
		Topics:           pc.Topics,
	}
	if c.Title == "" {
		c.Title = md["name"]
	}

	c.CreatedTime = parseMetaTime(md["created_time"])
	c.ModifiedTime = parseMetaTime(md["modified_time"])
	c.CollectionTime = parseMetaTime(md["collection_time"])
	c.ProcessingTime = report.Timestamp
	if c.ProcessingTime.IsZero() {
		c.ProcessingTime = parseMetaTime(md["processing_time"])
	}

	if n, err := strconv.Atoi(md["word_count"]); err == nil {
		c.WordCount = n
	}
	if n, err := strconv.ParseInt(md["size"], 10, 64); err == nil {
		c.Size = n
	}
	if hash := report.Metadata["content_hash"]; hash != "" {
		c.ContentHash = hash
	}

	for _, e := range pc.Entities {
		c.Entities = append(c.Entities, Entity{
			Text:       e.Text,
			Label:      e.Label,
			Start:      e.Start,
			End:        e.End,
			Confidence: e.Confidence,
		})
	}
	for _, r := range pc.Relationships {
		c.Relationships = append(c.Relationships, Relationship{
			Type:        r.Type,
			Target:      r.Target,
			Strength:    r.Strength,
			Description: r.Description,
		})
	}
	for _, issue := range report.Issues {
		c.QualityIssues = append(c.QualityIssues, QualityIssue{
			Type:        issue.Type,
			Description: issue.Description,
			Severity:    issue.Severity,
		})
	}
	return c
}

func parseMetaTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpsertContent stores a content record and all its child rows in one
// transaction, replacing any previous version with the same ID.
func (s *Store) UpsertContent(c Content) error {
	if c.ID == "" {
		return fmt.Errorf("content id is required")
	}

	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO content (
			id, title, content_type, source, path, content_hash,
			summary, processed_content, original_content,
			created_time, modified_time, collection_time, processing_time,
			quality_score, quality_level, word_count, size, language, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.ContentType, c.Source, c.Path, c.ContentHash,
		c.Summary, c.ProcessedContent, c.OriginalContent,
		nullableTime(c.CreatedTime), nullableTime(c.ModifiedTime),
		nullableTime(c.CollectionTime), nullableTime(c.ProcessingTime),
		c.QualityScore, c.QualityLevel, c.WordCount, c.Size, c.Language, string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting content %s: %w", c.ID, err)
	}

	childTables := []string{
		"content_keywords", "content_entities", "content_relationships",
		"content_topics", "content_quality_issues",
	}
	for _, table := range childTables {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE content_id = ?", c.ID); err != nil {
			return fmt.Errorf("clearing %s for %s: %w", table, c.ID, err)
		}
	}

	for i, kw := range c.Keywords {
		if _, err := tx.Exec(`INSERT INTO content_keywords (content_id, keyword, position) VALUES (?, ?, ?)`,
			c.ID, kw, i); err != nil {
			return fmt.Errorf("inserting keyword: %w", err)
		}
	}
	for _, e := range c.Entities {
		if _, err := tx.Exec(`INSERT INTO content_entities (content_id, text, label, start_offset, end_offset, confidence) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, e.Text, e.Label, e.Start, e.End, e.Confidence); err != nil {
			return fmt.Errorf("inserting entity: %w", err)
		}
	}
	for _, r := range c.Relationships {
		if _, err := tx.Exec(`INSERT INTO content_relationships (content_id, type, target, strength, description) VALUES (?, ?, ?, ?, ?)`,
			c.ID, r.Type, r.Target, r.Strength, r.Description); err != nil {
			return fmt.Errorf("inserting relationship: %w", err)
		}
	}
	for i, topic := range c.Topics {
		if _, err := tx.Exec(`INSERT INTO content_topics (content_id, topic, position) VALUES (?, ?, ?)`,
			c.ID, topic, i); err != nil {
			return fmt.Errorf("inserting topic: %w", err)
		}
	}
	for _, issue := range c.QualityIssues {
		if _, err := tx.Exec(`INSERT INTO content_quality_issues (content_id, type, description, severity) VALUES (?, ?, ?, ?)`,
			c.ID, issue.Type, issue.Description, issue.Severity); err != nil {
			return fmt.Errorf("inserting quality issue: %w", err)
		}
	}

	return tx.Commit()
}

// GetContent loads one content record with all of its child rows.
func (s *Store) GetContent(id string) (Content, error) {
	var c Content
	var created, modified, collected, processed sql.NullString
	var metadataJSON string

	err := s.db.QueryRow(`
		SELECT id, title, content_type, source, path, content_hash,
			summary, processed_content, original_content,
			created_time, modified_time, collection_time, processing_time,
			quality_score, quality_level, word_count, size, language, metadata_json
		FROM content WHERE id = ?`, id,
	).Scan(
		&c.ID, &c.Title, &c.ContentType, &c.Source, &c.Path, &c.ContentHash,
		&c.Summary, &c.ProcessedContent, &c.OriginalContent,
		&created, &modified, &collected, &processed,
		&c.QualityScore, &c.QualityLevel, &c.WordCount, &c.Size, &c.Language, &metadataJSON,
	)
	if err == sql.ErrNoRows {
		return Content{}, ErrNotFound
	}
	if err != nil {
		return Content{}, err
	}

	c.CreatedTime = scanTime(created)
	c.ModifiedTime = scanTime(modified)
	c.CollectionTime = scanTime(collected)
	c.ProcessingTime = scanTime(processed)

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return Content{}, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
	}

	if err := s.loadChildren(&c); err != nil {
		return Content{}, err
	}
	return c, nil
}

func (s *Store) loadChildren(c *Content) error {
	rows, err := s.db.Query(`SELECT keyword FROM content_keywords WHERE content_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return err
		}
		c.Keywords = append(c.Keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	entityRows, err := s.db.Query(`SELECT text, label, start_offset, end_offset, confidence FROM content_entities WHERE content_id = ?`, c.ID)
	if err != nil {
		return err
	}
	defer entityRows.Close()
	for entityRows.Next() {
		var e Entity
		if err := entityRows.Scan(&e.Text, &e.Label, &e.Start, &e.End, &e.Confidence); err != nil {
			return err
		}
		c.Entities = append(c.Entities, e)
	}
	if err := entityRows.Err(); err != nil {
		return err
	}

	relRows, err := s.db.Query(`SELECT type, target, strength, description FROM content_relationships WHERE content_id = ?`, c.ID)
	if err != nil {
		return err
	}
	defer relRows.Close()
	for relRows.Next() {
		var r Relationship
		if err := relRows.Scan(&r.Type, &r.Target, &r.Strength, &r.Description); err != nil {
			return err
		}
		c.Relationships = append(c.Relationships, r)
	}
	if err := relRows.Err(); err != nil {
		return err
	}

	topicRows, err := s.db.Query(`SELECT topic FROM content_topics WHERE content_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return err
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var topic string
		if err := topicRows.Scan(&topic); err != nil {
			return err
		}
		c.Topics = append(c.Topics, topic)
	}
	if err := topicRows.Err(); err != nil {
		return err
	}

	issueRows, err := s.db.Query(`SELECT type, description, severity FROM content_quality_issues WHERE content_id = ?`, c.ID)
	if err != nil {
		return err
	}
	defer issueRows.Close()
	for issueRows.Next() {
		var issue QualityIssue
		if err := issueRows.Scan(&issue.Type, &issue.Description, &issue.Severity); err != nil {
			return err
		}
		c.QualityIssues = append(c.QualityIssues, issue)
	}
	return issueRows.Err()
}

// DeleteContent removes a content record and its child rows.
func (s *Store) DeleteContent(id string) error {
	res, err := s.db.Exec(`DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func scanTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
