package ingest

import (
	"regexp"
	"strings"
)

var (
	runsOfBlank    = regexp.MustCompile(`[ \t\r]+`)
	runsOfNewlines = regexp.MustCompile(`\n{3,}`)
)

// Preprocess normalizes extracted text before chunking: trims, collapses
// horizontal whitespace runs, and caps blank-line runs at one. Paragraph
// breaks are kept because the splitters treat them as boundaries.
func Preprocess(text string) string {
	text = runsOfBlank.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = runsOfNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
