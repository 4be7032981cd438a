package ingestion

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

var (
	pageMarkerPattern = regexp.MustCompile(`(?m)^\s*strana \d+`)
	lawHeaderPattern  = regexp.MustCompile(`(?m)^\d+\s+ZÁKON.*`)
	blankLinesPattern = regexp.MustCompile(`\n{2,}`)
	spacesPattern     = regexp.MustCompile(` +`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ExtractPDF returns the plain text of every readable page, in page order.
func ExtractPDF(path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// ExtractHTML returns the visible body text of an HTML document.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var blocks []string
	doc.Find("body").Find("h1, h2, h3, h4, p, li, td").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(whitespacePattern.ReplaceAllString(s.Text(), " "))
		if text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		body := strings.TrimSpace(whitespacePattern.ReplaceAllString(doc.Find("body").Text(), " "))
		return body, nil
	}
	return strings.Join(blocks, "\n"), nil
}

// CleanPages removes page markers and running law headers from each page, joins the
// pages, collapses blank lines and runs of spaces, and normalizes to NFC.
func CleanPages(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		p = pageMarkerPattern.ReplaceAllString(p, "")
		p = lawHeaderPattern.ReplaceAllString(p, "")
		b.WriteString(p)
		b.WriteString("\n")
	}

	text := blankLinesPattern.ReplaceAllString(b.String(), "\n")
	text = spacesPattern.ReplaceAllString(text, " ")
	return norm.NFC.String(strings.TrimSpace(text))
}
