package processor

import (
	"path/filepath"
	"strings"

	"github.com/gleanerhq/gleaner/internal/collector"
)

// Indicator sets for the classification cascade. Order matters: the first
// matching bucket wins.
var (
	codeIndicators = []string{
		"def ", "function", "class ", "import ", "export ", "const ",
		"var ", "let ", "```", "github.com", "stackoverflow",
		"def main(", "if __name__",
	}
	academicIndicators = []string{
		"abstract", "methodology", "hypothesis", "research", "study shows",
		"journal", "peer review", "bibliography", "citation", "doi:", "arxiv",
	}
	technicalIndicators = []string{
		"api", "documentation", "tutorial", "guide", "specification",
		"installation", "configuration", "troubleshooting", "setup",
	}
	personalIndicators = []string{
		"notes", "diary", "journal", "personal", "todo", "reminder",
	}
	referenceIndicators = []string{
		"wikipedia", "encyclopedia", "dictionary", "glossary", "reference",
	}
	multimediaExts = map[string]bool{
		".jpg": true, ".png": true, ".gif": true,
		".mp4": true, ".mp3": true, ".pdf": true,
	}
)

// classify assigns a content type by running the indicator cascade.
// Code indicators are matched case-sensitively against the raw content;
// everything else works on the lowercased form.
func classify(raw collector.Raw, content string) ContentType {
	for _, ind := range codeIndicators {
		if strings.Contains(content, ind) {
			return TypeCode
		}
	}

	lower := strings.ToLower(content)
	source := strings.ToLower(raw.Source + " " + raw.Name + " " + raw.Path)

	for _, ind := range academicIndicators {
		if strings.Contains(lower, ind) {
			return TypeAcademic
		}
	}
	for _, ind := range technicalIndicators {
		if strings.Contains(lower, ind) {
			return TypeTechnical
		}
	}
	for _, ind := range personalIndicators {
		if strings.Contains(source, ind) || strings.Contains(lower, ind) {
			return TypePersonal
		}
	}
	for _, ind := range referenceIndicators {
		if strings.Contains(lower, ind) {
			return TypeReference
		}
	}
	if multimediaExts[strings.ToLower(filepath.Ext(raw.Name))] {
		return TypeMultimedia
	}
	return TypeText
}
