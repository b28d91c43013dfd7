// Package doctext extracts plain text from stored documents so the AI
// annotator can work on them.
package doctext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// maxPages bounds extraction on very large documents
const maxPages = 50

// Reader implements port.DocumentTextReader. PDFs go through mupdf; other
// files are treated as plain text.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a new document text reader
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ExtractText returns the text content of the document at path
func (r *Reader) ExtractText(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("document not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read document: %w", err)
		}
		return string(data), nil
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > maxPages {
		pageCount = maxPages
	}

	var b strings.Builder
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	r.logger.Info("Document text extracted",
		zap.String("path", path),
		zap.Int("pages", pageCount),
		zap.Int("chars", b.Len()))
	return b.String(), nil
}

// Verify interface compliance
var _ port.DocumentTextReader = (*Reader)(nil)
