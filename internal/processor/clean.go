package processor

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var (
	crlfPattern      = regexp.MustCompile(`\r\n?`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
	controlCharsExpr = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)
)

// cleanContent normalizes whitespace: CRLF to LF, runs of blank lines
// collapsed to one, tab/space runs to a single space, and control
// characters stripped (newlines survive).
func cleanContent(content string) string {
	content = crlfPattern.ReplaceAllString(content, "\n")
	content = controlCharsExpr.ReplaceAllString(content, "")
	content = spaceRunPattern.ReplaceAllString(content, " ")
	content = blankRunPattern.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// detectLanguage returns the ISO 639-1 code of the dominant language, or
// "en" when detection is unreliable.
func detectLanguage(content string) string {
	sample := content
	if len(sample) > 2000 {
		sample = sample[:2000]
	}
	info := whatlanggo.Detect(sample)
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return "en"
}
