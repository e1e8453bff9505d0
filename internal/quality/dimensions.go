package quality

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (c *Controller) checkLength(item Item) (float64, []Issue) {
	n := len(item.Content)
	switch {
	case n < c.cfg.MinContentLength:
		return 1.0, []Issue{{
			Type:        "content_too_short",
			Description: fmt.Sprintf("content is %d characters, minimum is %d", n, c.cfg.MinContentLength),
			Severity:    "high",
		}}
	case n > c.cfg.MaxContentLength:
		return 3.0, []Issue{{
			Type:        "content_too_long",
			Description: fmt.Sprintf("content is %d characters, maximum is %d", n, c.cfg.MaxContentLength),
			Severity:    "medium",
		}}
	case n < 100:
		return 6.0, []Issue{{
			Type:        "content_too_short",
			Description: "content under 100 characters carries little standalone value",
			Severity:    "low",
		}}
	case n > 500_000:
		return 7.0, []Issue{{
			Type:        "content_too_long",
			Description: "content over 500000 characters may be an unsplit dump",
			Severity:    "low",
		}}
	}
	return 10.0, nil
}

func (c *Controller) checkDuplication(item Item) (float64, []Issue) {
	switch c.dedup.classify(item.Content) {
	case dupExact:
		return 0.0, []Issue{{
			Type:        "exact_duplicate",
			Description: "identical content was already validated",
			Severity:    "high",
		}}
	case dupNear:
		return 2.0, []Issue{{
			Type:        "near_duplicate",
			Description: "content is nearly identical to previously validated content",
			Severity:    "high",
		}}
	case dupSimilar:
		return 6.0, []Issue{{
			Type:        "similar_duplicate_content",
			Description: "content substantially overlaps previously validated content",
			Severity:    "medium",
		}}
	}
	return 10.0, nil
}

var (
	nonASCIIRun    = regexp.MustCompile(`[^\x00-\x7F]{5,}`)
	controlRun     = regexp.MustCompile("[\x00-\x08\x0B-\x1F]{2,}")
	properNounWord = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	numberToken    = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
)

func (c *Controller) checkQuality(item Item) (float64, []Issue) {
	content := item.Content

	if garbled(content) {
		return 1.0, []Issue{{
			Type:        "garbled_text",
			Description: "text appears garbled or binary",
			Severity:    "high",
		}}
	}

	score := 10.0
	var issues []Issue

	degrade := func(limit float64, issue Issue) {
		if limit < score {
			score = limit
		}
		issues = append(issues, issue)
	}

	if excessiveRepetition(content) {
		degrade(4.0, Issue{
			Type:        "excessive_repetition",
			Description: "a line repeats across more than 20% of the content",
			Severity:    "medium",
		})
	}

	if nonASCIIRun.MatchString(content) || controlRun.MatchString(content) || strings.ContainsRune(content, '�') {
		degrade(6.0, Issue{
			Type:        "encoding_artifacts",
			Description: "content contains encoding artifacts or unexpected byte runs",
			Severity:    "medium",
		})
	}

	coherence := coherenceScore(content)
	if coherence < 0.3 {
		degrade(5.0, Issue{
			Type:        "low_coherence",
			Description: "sentence structure suggests fragmented or machine-mangled text",
			Severity:    "medium",
		})
	} else if coherence < 0.6 {
		degrade(7.0, Issue{
			Type:        "moderate_coherence",
			Description: "sentence structure is unusual",
			Severity:    "low",
		})
	}

	info := informationValue(content)
	if info < 0.3 {
		degrade(4.0, Issue{
			Type:        "low_information_value",
			Description: "content contains little specific information",
			Severity:    "medium",
		})
	} else if info < 0.6 {
		degrade(7.0, Issue{
			Type:        "moderate_information_value",
			Description: "content is mostly generic",
			Severity:    "low",
		})
	}

	return score, issues
}

// garbled reports text with too few printable or alphabetic characters to
// plausibly be prose.
func garbled(content string) bool {
	if content == "" {
		return true
	}
	total, printable, alpha := 0, 0, 0
	for _, r := range content {
		total++
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			printable++
		}
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	return float64(printable)/float64(total) < 0.8 || float64(alpha)/float64(total) < 0.3
}

// excessiveRepetition reports whether any non-trivial line makes up more
// than 20% of all lines. Needs at least five lines to be meaningful.
func excessiveRepetition(content string) bool {
	lines := strings.Split(content, "\n")
	if len(lines) < 5 {
		return false
	}
	counts := map[string]int{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 10 {
			counts[line]++
		}
	}
	for _, n := range counts {
		if float64(n) > 0.2*float64(len(lines)) {
			return true
		}
	}
	return false
}

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

func coherenceScore(content string) float64 {
	parts := sentenceSplitter.Split(content, -1)
	var sentences []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	if len(sentences) == 0 {
		return 0.3
	}

	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	avg := float64(totalWords) / float64(len(sentences))

	var score float64
	switch {
	case avg >= 5 && avg <= 30:
		score = 0.8
	case avg >= 3 && avg <= 50:
		score = 0.6
	default:
		score = 0.3
	}
	if strings.Contains(content, "\n\n") {
		score += 0.2
	}
	return score
}

func informationValue(content string) float64 {
	words := strings.Fields(content)
	if len(words) == 0 {
		return 0
	}

	value := 0.5
	value += math.Min(float64(technicalIndicatorCount(content))*0.05, 0.3)
	value += math.Min(float64(len(properNounWord.FindAllString(content, -1)))/float64(len(words)), 0.2)
	value += math.Min(float64(len(numberToken.FindAllString(content, -1)))/float64(len(words)), 0.1)
	return value
}

var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2,}\b`),        // acronyms
	regexp.MustCompile(`\b\w+\(\)`),            // function calls
	regexp.MustCompile(`https?://`),            // links
	regexp.MustCompile(`\b\d+\.\d+\b`),         // versions, decimals
	regexp.MustCompile(`[{}\[\]()]`),           // brackets
	regexp.MustCompile(`\b[a-z]+_[a-z]+\b`),    // snake_case
	regexp.MustCompile(`\b[a-z]+[A-Z][a-z]+\b`), // camelCase
}

func technicalIndicatorCount(content string) int {
	total := 0
	for _, p := range technicalPatterns {
		total += len(p.FindAllString(content, -1))
	}
	return total
}

func (c *Controller) checkFormat(item Item) (float64, []Issue) {
	content := item.Content
	score := 10.0
	var issues []Issue

	degrade := func(limit float64, issue Issue) {
		if limit < score {
			score = limit
		}
		issues = append(issues, issue)
	}

	if !utf8.ValidString(content) {
		degrade(5.0, Issue{
			Type:        "invalid_format_encoding",
			Description: "content is not valid UTF-8",
			Severity:    "medium",
		})
	}

	if len(content) > 0 {
		special := 0
		for _, r := range content {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && !unicode.IsPunct(r) {
				special++
			}
		}
		if float64(special)/float64(utf8.RuneCountInString(content)) > 0.1 {
			degrade(6.0, Issue{
				Type:        "format_special_characters",
				Description: "over 10% of characters are neither letters, digits, nor punctuation",
				Severity:    "medium",
			})
		}
	}

	parts := sentenceSplitter.Split(content, -1)
	var sentences []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	if len(sentences) > 10 {
		totalWords := 0
		for _, s := range sentences {
			totalWords += len(strings.Fields(s))
		}
		avg := float64(totalWords) / float64(len(sentences))
		if avg < 3 || avg > 50 {
			degrade(7.0, Issue{
				Type:        "format_sentence_structure",
				Description: "average sentence length is implausible for prose",
				Severity:    "low",
			})
		}
	}

	if containsFold(item.Name, "pdf") && len(strings.Fields(content)) < 50 {
		degrade(4.0, Issue{
			Type:        "format_pdf_extraction",
			Description: "PDF produced almost no text; extraction likely failed",
			Severity:    "medium",
		})
	}

	return score, issues
}

var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "very": true,
	"really": true, "just": true, "quite": true,
}

func (c *Controller) checkDensity(item Item) (float64, []Issue) {
	words := strings.Fields(item.Content)
	if len(words) == 0 {
		return 1.0, []Issue{{
			Type:        "density_no_words",
			Description: "content contains no words",
			Severity:    "high",
		}}
	}

	score := 10.0
	var issues []Issue

	degrade := func(limit float64, issue Issue) {
		if limit < score {
			score = limit
		}
		issues = append(issues, issue)
	}

	unique := map[string]bool{}
	alphaWords := 0
	filler := 0
	for _, w := range words {
		w = strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]{}"))
		if w == "" {
			continue
		}
		if isAlphaWord(w) {
			alphaWords++
			unique[w] = true
		}
		if fillerWords[w] {
			filler++
		}
	}

	if alphaWords > 0 {
		ratio := float64(len(unique)) / float64(alphaWords)
		if ratio < 0.3 {
			degrade(5.0, Issue{
				Type:        "density_low_vocabulary",
				Description: "under 30% of words are unique",
				Severity:    "medium",
			})
		} else if ratio < 0.5 {
			degrade(7.0, Issue{
				Type:        "density_limited_vocabulary",
				Description: "under half of the words are unique",
				Severity:    "low",
			})
		}
	}

	if float64(filler)/float64(len(words)) > 0.5 {
		degrade(6.0, Issue{
			Type:        "density_filler_heavy",
			Description: "over half of the words are filler",
			Severity:    "low",
		})
	}

	if technicalIndicatorCount(item.Content) > 5 {
		score = math.Min(score+1, 10)
	}

	return score, issues
}

func isAlphaWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return w != ""
}

var (
	requiredMetadata    = []string{"source", "collection_time"}
	recommendedMetadata = []string{"created_time", "modified_time", "title", "path"}
	timestampFields     = []string{"collection_time", "created_time", "modified_time", "processing_time"}
)

func (c *Controller) checkMetadata(item Item) (float64, []Issue) {
	score := 10.0
	var issues []Issue

	degrade := func(limit float64, issue Issue) {
		if limit < score {
			score = limit
		}
		issues = append(issues, issue)
	}

	var missingRequired []string
	for _, field := range requiredMetadata {
		if item.Metadata[field] == "" {
			missingRequired = append(missingRequired, field)
		}
	}
	if len(missingRequired) > 0 {
		degrade(6.0, Issue{
			Type:        "metadata_missing_required",
			Description: fmt.Sprintf("missing required metadata: %s", strings.Join(missingRequired, ", ")),
			Severity:    "medium",
		})
	}

	var missingRecommended []string
	for _, field := range recommendedMetadata {
		if item.Metadata[field] == "" {
			missingRecommended = append(missingRecommended, field)
		}
	}
	if len(missingRecommended) > 0 {
		degrade(8.0, Issue{
			Type:        "metadata_missing_recommended",
			Description: fmt.Sprintf("missing recommended metadata: %s", strings.Join(missingRecommended, ", ")),
			Severity:    "low",
		})
	}

	for _, field := range timestampFields {
		v := item.Metadata[field]
		if v == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, v); err != nil {
			degrade(7.0, Issue{
				Type:        "metadata_invalid_timestamp",
				Description: fmt.Sprintf("field %s is not a valid timestamp: %q", field, v),
				Severity:    "low",
			})
			break
		}
	}

	return score, issues
}

var (
	highReliabilitySources = []string{"academic", "research", "documentation", "official", "apple_notes", "obsidian"}
	lowReliabilitySources  = []string{"unknown", "temp", "cache"}
	spamMarkers            = []string{"viagra", "click here"}
)

func (c *Controller) checkSource(item Item) (float64, []Issue) {
	score := 10.0
	var issues []Issue

	for _, marker := range spamMarkers {
		if containsFold(item.Content, marker) {
			return 3.0, []Issue{{
				Type:        "source_spam_pattern",
				Description: fmt.Sprintf("content matches spam pattern %q", marker),
				Severity:    "high",
			}}
		}
	}

	source := strings.ToLower(item.Source)
	for _, low := range lowReliabilitySources {
		if source == "" || strings.Contains(source, low) {
			score = 6.0
			issues = append(issues, Issue{
				Type:        "source_low_reliability",
				Description: "content comes from an unknown or low-trust source",
				Severity:    "low",
			})
			return score, issues
		}
	}

	for _, high := range highReliabilitySources {
		if strings.Contains(source, high) {
			score = math.Min(score+1, 10)
			break
		}
	}

	return score, issues
}
