package processor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gleanerhq/gleaner/internal/collector"
)

var (
	wordPattern     = regexp.MustCompile(`\b[A-Za-z]{4,}\b`)
	urlPattern      = regexp.MustCompile(`https?://[^\s]+`)
	emailPattern    = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	datePattern     = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	tagPattern      = regexp.MustCompile(`#(\w+)`)
)

var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "they": true,
	"have": true, "were": true, "been": true, "their": true, "said": true,
	"each": true, "which": true, "them": true, "than": true, "will": true,
	"would": true, "there": true, "could": true, "other": true, "more": true,
	"very": true, "what": true, "know": true, "just": true, "into": true,
	"over": true, "also": true, "your": true, "when": true, "some": true,
	"time": true, "only": true, "then": true, "about": true, "these": true,
	"where": true, "being": true, "should": true, "after": true, "while": true,
	"because": true, "before": true, "through": true, "between": true,
	"such": true, "here": true, "most": true, "made": true, "many": true,
	"must": true, "like": true, "well": true, "does": true,
}

// keywordFallback extracts frequency-ranked keywords: words of four or more
// letters, stop words removed, top 20 by count, capped at the keyword limit.
// Ties keep first-occurrence order so output is deterministic.
func keywordFallback(content string) []string {
	matches := wordPattern.FindAllString(strings.ToLower(content), -1)

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, w := range matches {
		if stopWords[w] {
			continue
		}
		counts[w]++
		if _, ok := firstSeen[w]; !ok {
			firstSeen[w] = i
		}
	}
	if len(counts) == 0 {
		return nil
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.SliceStable(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if len(words) > 20 {
		words = words[:20]
	}
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

// entityFallback extracts URLs, email addresses, and numeric dates with
// their byte offsets.
func entityFallback(content string) []Entity {
	var entities []Entity

	add := func(pattern *regexp.Regexp, label string) {
		for _, loc := range pattern.FindAllStringIndex(content, -1) {
			if len(entities) >= maxEntities {
				return
			}
			entities = append(entities, Entity{
				Text:       content[loc[0]:loc[1]],
				Label:      label,
				Start:      loc[0],
				End:        loc[1],
				Confidence: 0.9,
			})
		}
	}

	add(urlPattern, "URL")
	add(emailPattern, "EMAIL")
	add(datePattern, "DATE")
	return entities
}

// extractRelationships derives structural links: containing folder, source,
// wiki-style references, outbound URLs, and tags.
func extractRelationships(raw collector.Raw, content string) []Relationship {
	var rels []Relationship

	if dir := raw.Metadata["directory"]; dir != "" {
		rels = append(rels, Relationship{
			Type:        "belongs_to_folder",
			Target:      dir,
			Strength:    1.0,
			Description: "file lives in this folder",
		})
	}
	if raw.Source != "" {
		rels = append(rels, Relationship{
			Type:        "created_by",
			Target:      raw.Source,
			Strength:    1.0,
			Description: fmt.Sprintf("collected from %s", raw.Source),
		})
	}

	for _, m := range wikiLinkPattern.FindAllStringSubmatch(content, -1) {
		rels = append(rels, Relationship{
			Type:     "references",
			Target:   m[1],
			Strength: 0.8,
		})
	}

	urls := urlPattern.FindAllString(content, -1)
	if len(urls) > 5 {
		urls = urls[:5]
	}
	for _, u := range urls {
		rels = append(rels, Relationship{
			Type:     "links_to",
			Target:   u,
			Strength: 0.6,
		})
	}

	seen := map[string]bool{}
	for _, m := range tagPattern.FindAllStringSubmatch(content, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		rels = append(rels, Relationship{
			Type:     "tagged_with",
			Target:   m[1],
			Strength: 0.7,
		})
	}

	return rels
}
