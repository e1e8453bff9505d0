package processor

import (
	"testing"

	"github.com/gleanerhq/gleaner/internal/collector"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		raw     collector.Raw
		content string
		want    ContentType
	}{
		{
			name:    "code by keyword",
			content: "def main():\n    return compute()",
			want:    TypeCode,
		},
		{
			name:    "code by fenced block",
			content: "Example usage:\n```\nrun --verbose\n```",
			want:    TypeCode,
		},
		{
			name:    "academic",
			content: "Abstract. This study shows a correlation. See doi:10.1000/xyz for the full methodology.",
			want:    TypeAcademic,
		},
		{
			name:    "technical",
			content: "Installation guide: follow the configuration steps below to complete setup.",
			want:    TypeTechnical,
		},
		{
			name:    "personal from source",
			raw:     collector.Raw{Source: "application_data", Name: "diary-2026.txt"},
			content: "Met an old friend downtown today.",
			want:    TypePersonal,
		},
		{
			name:    "personal from content",
			content: "Reminder: call the bank on Monday morning.",
			want:    TypePersonal,
		},
		{
			name:    "reference",
			content: "According to the encyclopedia entry, the term dates back centuries.",
			want:    TypeReference,
		},
		{
			name: "multimedia by extension",
			raw:  collector.Raw{Name: "vacation.mp4"},
			// Content must dodge every earlier indicator bucket.
			content: "A short clip recorded at the beach last summer.",
			want:    TypeMultimedia,
		},
		{
			name:    "default text",
			content: "Plain prose that matches none of the indicator buckets at all.",
			want:    TypeText,
		},
		{
			name:    "code beats academic when both match",
			content: "import numpy\n# research methodology helpers",
			want:    TypeCode,
		},
		{
			name: "code indicators are case sensitive",
			// "Import" capitalized must not trigger the code bucket.
			content: "Import duties rose sharply last quarter across the region.",
			want:    TypeText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.raw, tt.content); got != tt.want {
				t.Errorf("classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
