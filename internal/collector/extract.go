package collector

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// extractText reads a file and returns its textual content plus a title hint
// (empty when the format carries none). PDF and HTML get format-aware
// extraction; everything else is read as plain text.
func extractText(path string) (content, title string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		content, err = extractPDF(path)
		return content, "", err
	case ".html", ".htm":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return extractHTML(bytes.NewReader(data))
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractHTML returns the visible text of an HTML document and its <title>.
func extractHTML(r io.Reader) (content, title string, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sb.String(), title, nil
}
