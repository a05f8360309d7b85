package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var pages []string
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", n, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	// Pages join as paragraphs so the splitters treat a page break as a
	// paragraph boundary.
	return strings.Join(pages, "\n\n"), nil
}
