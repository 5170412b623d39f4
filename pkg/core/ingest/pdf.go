// Package ingest turns uploaded PDFs and web pages into plain report text.
package ingest

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ExtractPages returns the plain text of every page of the PDF at path that
// has any. Pages that fail to decode are skipped; corrupt files that make the
// decoder panic come back as errors.
func ExtractPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("panic during PDF extraction: %v", r)
		}
	}()

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", openErr)
	}
	defer f.Close()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			zap.L().Debug("skipping unreadable PDF page", zap.Int("page", i), zap.Error(pageErr))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}

	zap.L().Info("pdf text extracted",
		zap.String("path", path),
		zap.Int("pages", total),
		zap.Int("pages_with_text", len(pages)),
	)
	return pages, nil
}
