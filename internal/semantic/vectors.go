package semantic

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Match pairs a content ID with its cosine similarity to the query vector.
type Match struct {
	ContentID string  `json:"content_id"`
	Score     float32 `json:"score"`
}

// VectorStore provides vector storage and brute-force cosine similarity
// search over the content_vectors table. Good enough well past the size of a
// personal knowledge base; an ANN index only becomes interesting around ~100K
// vectors.
type VectorStore struct {
	db *sql.DB
}

// NewVectorStore wraps an existing *sql.DB for vector operations.
// The content_vectors table must already exist (created via migrations).
func NewVectorStore(db *sql.DB) *VectorStore {
	return &VectorStore{db: db}
}

// Upsert stores the embedding for a content record, replacing any previous one.
func (s *VectorStore) Upsert(contentID string, embedding []float32, model string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %s", contentID)
	}
	blob := encodeFloat32s(embedding)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO content_vectors (content_id, embedding, dimensions, model, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		contentID, blob, len(embedding), model, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting vector for %s: %w", contentID, err)
	}
	return nil
}

// SearchSimilar scans all stored vectors and returns the top-K most similar
// content IDs by cosine similarity, best first.
func (s *VectorStore) SearchSimilar(vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT content_id, embedding FROM content_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &matchHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := dotProduct(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, Match{ContentID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = Match{ContentID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Pop the min-heap into a best-first slice.
	results := make([]Match, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Match)
	}
	return results, nil
}

// Delete removes the vector for a content record.
func (s *VectorStore) Delete(contentID string) error {
	_, err := s.db.Exec(`DELETE FROM content_vectors WHERE content_id = ?`, contentID)
	return err
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM content_vectors`).Scan(&count)
	return count, err
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// dotProduct computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func dotProduct(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// matchHeap is a min-heap of Match ordered by Score, used to track top-K
// candidates during the scan.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x interface{}) { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
