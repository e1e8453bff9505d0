package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Content is a stored knowledge item with all of its child records.
type Content struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	ContentType      string            `json:"content_type"`
	Source           string            `json:"source"`
	Path             string            `json:"path"`
	ContentHash      string            `json:"content_hash"`
	Summary          string            `json:"summary"`
	ProcessedContent string            `json:"processed_content"`
	OriginalContent  string            `json:"original_content"`
	CreatedTime      time.Time         `json:"created_time"`
	ModifiedTime     time.Time         `json:"modified_time"`
	CollectionTime   time.Time         `json:"collection_time"`
	ProcessingTime   time.Time         `json:"processing_time"`
	QualityScore     float64           `json:"quality_score"`
	QualityLevel     string            `json:"quality_level"`
	WordCount        int               `json:"word_count"`
	Size             int64             `json:"size"`
	Language         string            `json:"language"`
	Metadata         map[string]string `json:"metadata"`

	Keywords      []string       `json:"keywords"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Topics        []string       `json:"topics"`
	QualityIssues []QualityIssue `json:"quality_issues"`
}

type Entity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

type Relationship struct {
	Type        string  `json:"type"`
	Target      string  `json:"target"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
}

type QualityIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// ContentSummary is the lightweight row returned by searches and listings.
type ContentSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ContentType    string    `json:"content_type"`
	Source         string    `json:"source"`
	Summary        string    `json:"summary"`
	QualityScore   float64   `json:"quality_score"`
	QualityLevel   string    `json:"quality_level"`
	WordCount      int       `json:"word_count"`
	ProcessingTime time.Time `json:"processing_time"`
}

// SearchFilters narrows SearchContent results. Zero values mean "no filter".
type SearchFilters struct {
	ContentType     string
	Source          string
	QualityLevel    string
	MinQualityScore float64
	Topic           string
}

// Statistics summarizes the stored corpus.
type Statistics struct {
	TotalContent    int                `json:"total_content"`
	ByType          map[string]int     `json:"by_type"`
	BySource        map[string]int     `json:"by_source"`
	ByQualityLevel  map[string]int     `json:"by_quality_level"`
	AvgQualityScore float64            `json:"avg_quality_score"`
	TotalWords      int                `json:"total_words"`
	TopKeywords     []KeywordCount     `json:"top_keywords"`
	TopTopics       []TopicCount       `json:"top_topics"`
	RecentActivity  []DayCount         `json:"recent_activity"`
	DatabaseSize    int64              `json:"database_size_bytes"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Collection groups stored content.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedTime time.Time `json:"created_time"`
	ItemCount   int       `json:"item_count"`
}

// Job is a queued background task (embedding generation).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
