package processor

import (
	"regexp"
	"sort"
	"strings"
)

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var importanceWords = []string{
	"important", "key", "main", "primary", "significant", "essential",
}

// summarize produces an extractive summary no longer than the configured
// maximum: short content is returned as-is, few-sentence content is
// truncated, and longer content keeps its three highest-scoring sentences.
func (p *Processor) summarize(content string) string {
	maxLen := p.cfg.MaxSummaryLength
	if maxLen <= 0 {
		maxLen = 200
	}

	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= maxLen {
		return trimmed
	}

	parts := sentenceSplit.Split(trimmed, -1)
	sentences := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	if len(sentences) <= 3 {
		return truncate(trimmed, maxLen)
	}

	type scored struct {
		index int
		text  string
		score int
	}
	scoredSentences := make([]scored, len(sentences))
	for i, s := range sentences {
		score := 0
		// Position: leading sentences carry the thesis.
		if i < 3 {
			score += 2
		} else if i < len(sentences)/2 {
			score++
		}
		if len(s) > 10 && len(s) < 200 {
			score++
		}
		lower := strings.ToLower(s)
		for _, w := range importanceWords {
			if strings.Contains(lower, w) {
				score++
				break
			}
		}
		scoredSentences[i] = scored{index: i, text: s, score: score}
	}

	// Stable sort keeps document order among equally scored sentences.
	sort.SliceStable(scoredSentences, func(i, j int) bool {
		return scoredSentences[i].score > scoredSentences[j].score
	})
	top := scoredSentences[:3]
	sort.Slice(top, func(i, j int) bool { return top[i].index < top[j].index })

	texts := make([]string, len(top))
	for i, s := range top {
		texts[i] = s.text
	}
	return truncate(strings.Join(texts, ". "), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// topicKeywords maps each fixed topic to its indicator terms.
var topicKeywords = map[string][]string{
	"artificial_intelligence": {"ai", "machine learning", "neural network", "deep learning", "llm", "artificial intelligence", "model training"},
	"programming":             {"code", "programming", "software", "developer", "function", "algorithm", "debugging"},
	"science":                 {"research", "experiment", "hypothesis", "theory", "scientific", "study", "analysis"},
	"technology":              {"technology", "computer", "internet", "digital", "innovation", "device", "hardware"},
	"business":                {"business", "market", "revenue", "strategy", "startup", "customer", "product"},
	"education":               {"learning", "education", "course", "teaching", "student", "lecture", "curriculum"},
	"health":                  {"health", "medical", "exercise", "nutrition", "wellness", "disease", "treatment"},
	"philosophy":              {"philosophy", "ethics", "meaning", "consciousness", "morality", "existence"},
	"creativity":              {"design", "art", "creative", "music", "writing", "inspiration", "aesthetic"},
	"productivity":            {"productivity", "habit", "goal", "planning", "workflow", "organization", "focus"},
}

// topicOrder gives deterministic iteration over topicKeywords.
var topicOrder = []string{
	"artificial_intelligence", "programming", "science", "technology",
	"business", "education", "health", "philosophy", "creativity",
	"productivity",
}

// extractTopics scores each fixed topic by indicator occurrences plus a
// bonus for overlap with the extracted keywords, returning the top scoring
// topics with a nonzero score.
func extractTopics(content string, keywords []string) []string {
	lower := strings.ToLower(content)

	kwSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kwSet[strings.ToLower(k)] = true
	}

	type topicScore struct {
		topic string
		score int
	}
	var scores []topicScore
	for _, topic := range topicOrder {
		score := 0
		for _, term := range topicKeywords[topic] {
			score += strings.Count(lower, term)
			if kwSet[term] {
				score += 2
			}
		}
		if score > 0 {
			scores = append(scores, topicScore{topic, score})
		}
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if len(scores) > maxTopics {
		scores = scores[:maxTopics]
	}

	topics := make([]string, len(scores))
	for i, s := range scores {
		topics[i] = s.topic
	}
	return topics
}
