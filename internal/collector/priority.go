package collector

import "time"

// PriorityPolicy assigns an advisory priority on a single 0-10 scale so that
// items from different collectors are directly comparable. Higher means the
// item is more likely to be worth keeping. The score never affects whether
// an item is collected, only how downstream consumers may order work.
type PriorityPolicy struct {
	Now func() time.Time
}

func NewPriorityPolicy() PriorityPolicy {
	return PriorityPolicy{Now: time.Now}
}

// categoryWeights maps a content category to its base priority contribution.
var categoryWeights = map[string]float64{
	"document":     4.0,
	"note":         4.0,
	"text":         3.0,
	"ebook":        3.0,
	"bookmark":     2.5,
	"code":         2.5,
	"data":         2.0,
	"presentation": 2.0,
	"image":        1.0,
	"other":        0.5,
}

// Score combines category, size, and recency into [0, 10].
func (p PriorityPolicy) Score(category string, sizeBytes int64, modified time.Time) float64 {
	score, ok := categoryWeights[category]
	if !ok {
		score = categoryWeights["other"]
	}

	// Recency: recently touched content is more likely to matter.
	if !modified.IsZero() {
		age := p.Now().Sub(modified)
		switch {
		case age < 7*24*time.Hour:
			score += 3.0
		case age < 30*24*time.Hour:
			score += 2.0
		case age < 90*24*time.Hour:
			score += 1.0
		case age < 365*24*time.Hour:
			score += 0.5
		}
	}

	// Size: mid-sized content tends to be substantive; extremes rarely are.
	switch {
	case sizeBytes >= 1024 && sizeBytes <= 50<<20:
		score += 2.0
	case sizeBytes > 100<<20:
		score -= 1.0
	case sizeBytes > 0 && sizeBytes >= 100:
		score += 1.0
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score
}
