package processor

import (
	"regexp"
	"strings"
	"time"

	"github.com/gleanerhq/gleaner/internal/collector"
)

var headerPattern = regexp.MustCompile(`(?m)^#+ `)

var qualityIndicators = []string{
	"analysis", "conclusion", "summary", "important", "key points",
	"methodology", "results", "discussion", "background", "introduction",
}

var reliableSources = []string{
	"academic", "research", "official", "documentation",
}

// scoreQuality estimates intrinsic content quality on [0, 10] from length,
// structure, vocabulary, source reliability, and recency.
func (p *Processor) scoreQuality(raw collector.Raw, content string) float64 {
	var score float64

	switch n := len(content); {
	case n > 1000:
		score += 3
	case n > 500:
		score += 2
	case n > 100:
		score += 1
	default:
		score += 0.5
	}

	if strings.Count(content, "\n") > 5 {
		score++
	}
	if headerPattern.MatchString(content) {
		score++
	}
	if strings.Count(content, "- ") > 2 {
		score += 0.5
	}

	lower := strings.ToLower(content)
	for _, ind := range qualityIndicators {
		if strings.Contains(lower, ind) {
			score += 0.3
		}
	}

	source := strings.ToLower(raw.Source + " " + raw.Path)
	for _, s := range reliableSources {
		if strings.Contains(source, s) {
			score++
			break
		}
	}

	if !raw.ModifiedAt.IsZero() {
		age := p.now().Sub(raw.ModifiedAt)
		if age < 30*24*time.Hour {
			score++
		} else if age < 90*24*time.Hour {
			score += 0.5
		}
	}

	if score > 10 {
		score = 10
	}
	return score
}
