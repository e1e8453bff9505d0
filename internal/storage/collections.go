package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateCollection registers a named collection. Creating an existing name
// returns the existing collection unchanged.
func (s *Store) CreateCollection(name, description string) (Collection, error) {
	if name == "" {
		return Collection{}, fmt.Errorf("collection name is required")
	}

	existing, err := s.GetCollection(name)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return Collection{}, err
	}

	c := Collection{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedTime: time.Now().UTC(),
	}
	_, err = s.db.Exec(`INSERT INTO collections (id, name, description, created_time) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.CreatedTime.Format(time.RFC3339))
	if err != nil {
		return Collection{}, fmt.Errorf("creating collection %q: %w", name, err)
	}
	return c, nil
}

// GetCollection looks up a collection by name.
func (s *Store) GetCollection(name string) (Collection, error) {
	var c Collection
	var created sql.NullString
	err := s.db.QueryRow(`
		SELECT c.id, c.name, c.description, c.created_time,
			(SELECT COUNT(*) FROM collection_memberships m WHERE m.collection_id = c.id)
		FROM collections c WHERE c.name = ?`, name,
	).Scan(&c.ID, &c.Name, &c.Description, &created, &c.ItemCount)
	if err == sql.ErrNoRows {
		return Collection{}, ErrNotFound
	}
	if err != nil {
		return Collection{}, err
	}
	c.CreatedTime = scanTime(created)
	return c, nil
}

// ListCollections returns all collections with their item counts.
func (s *Store) ListCollections() ([]Collection, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, c.description, c.created_time,
			(SELECT COUNT(*) FROM collection_memberships m WHERE m.collection_id = c.id)
		FROM collections c ORDER BY c.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var results []Collection
	for rows.Next() {
		var c Collection
		var created sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &created, &c.ItemCount); err != nil {
			return nil, err
		}
		c.CreatedTime = scanTime(created)
		results = append(results, c)
	}
	return results, rows.Err()
}

// AddToCollection places stored content into a collection, creating the
// collection if needed. Adding the same content twice is a no-op.
func (s *Store) AddToCollection(name, contentID string) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM content WHERE id = ?`, contentID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	c, err := s.CreateCollection(name, "")
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO collection_memberships (collection_id, content_id, added_time)
		VALUES (?, ?, ?)`,
		c.ID, contentID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("adding %s to collection %q: %w", contentID, name, err)
	}
	return nil
}

// CollectionContent lists the content summaries in a collection.
func (s *Store) CollectionContent(name string, limit int) ([]ContentSummary, error) {
	c, err := s.GetCollection(name)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT ct.id, ct.title, ct.content_type, ct.source, ct.summary,
			ct.quality_score, ct.quality_level, ct.word_count, ct.processing_time
		FROM content ct
		JOIN collection_memberships m ON m.content_id = ct.id
		WHERE m.collection_id = ?
		ORDER BY m.added_time DESC LIMIT ?`, c.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing collection %q: %w", name, err)
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

// DeleteCollection removes a collection and its memberships; the content
// itself is untouched.
func (s *Store) DeleteCollection(name string) error {
	res, err := s.db.Exec(`DELETE FROM collections WHERE name = ?`, name)
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
