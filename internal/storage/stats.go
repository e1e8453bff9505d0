package storage

import (
	"fmt"
	"os"
	"time"
)

// Statistics aggregates counts, score averages, and top keyword/topic
// rankings across the stored corpus.
func (s *Store) Statistics() (Statistics, error) {
	stats := Statistics{
		ByType:         map[string]int{},
		BySource:       map[string]int{},
		ByQualityLevel: map[string]int{},
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(quality_score), 0), COALESCE(SUM(word_count), 0)
		FROM content`).Scan(&stats.TotalContent, &stats.AvgQualityScore, &stats.TotalWords)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting content: %w", err)
	}

	if err := s.countBy("content_type", stats.ByType); err != nil {
		return Statistics{}, err
	}
	if err := s.countBy("source", stats.BySource); err != nil {
		return Statistics{}, err
	}
	if err := s.countBy("quality_level", stats.ByQualityLevel); err != nil {
		return Statistics{}, err
	}

	keywordRows, err := s.db.Query(`
		SELECT keyword, COUNT(*) AS n FROM content_keywords
		GROUP BY keyword ORDER BY n DESC, keyword ASC LIMIT 20`)
	if err != nil {
		return Statistics{}, fmt.Errorf("ranking keywords: %w", err)
	}
	defer keywordRows.Close()
	for keywordRows.Next() {
		var kc KeywordCount
		if err := keywordRows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return Statistics{}, err
		}
		stats.TopKeywords = append(stats.TopKeywords, kc)
	}
	if err := keywordRows.Err(); err != nil {
		return Statistics{}, err
	}

	topicRows, err := s.db.Query(`
		SELECT topic, COUNT(*) AS n FROM content_topics
		GROUP BY topic ORDER BY n DESC, topic ASC LIMIT 15`)
	if err != nil {
		return Statistics{}, fmt.Errorf("ranking topics: %w", err)
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var tc TopicCount
		if err := topicRows.Scan(&tc.Topic, &tc.Count); err != nil {
			return Statistics{}, err
		}
		stats.TopTopics = append(stats.TopTopics, tc)
	}
	if err := topicRows.Err(); err != nil {
		return Statistics{}, err
	}

	since := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	activityRows, err := s.db.Query(`
		SELECT DATE(processing_time) AS day, COUNT(*) FROM content
		WHERE processing_time >= ?
		GROUP BY day ORDER BY day DESC`, since)
	if err != nil {
		return Statistics{}, fmt.Errorf("counting recent activity: %w", err)
	}
	defer activityRows.Close()
	for activityRows.Next() {
		var dc DayCount
		if err := activityRows.Scan(&dc.Date, &dc.Count); err != nil {
			return Statistics{}, err
		}
		stats.RecentActivity = append(stats.RecentActivity, dc)
	}
	if err := activityRows.Err(); err != nil {
		return Statistics{}, err
	}

	if s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			stats.DatabaseSize = info.Size()
		}
	}

	return stats, nil
}

func (s *Store) countBy(column string, into map[string]int) error {
	rows, err := s.db.Query(`SELECT ` + column + `, COUNT(*) FROM content GROUP BY ` + column)
	if err != nil {
		return fmt.Errorf("grouping by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
