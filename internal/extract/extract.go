package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"jobboard-backend/internal/staging"
)

var (
	// ErrUnsupportedFormat is returned for staged formats that cannot be analyzed.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyContent is returned when a document yields no usable text.
	ErrEmptyContent = errors.New("document has no extractable text")
	// ErrRead is returned when the staged file cannot be read.
	ErrRead = errors.New("read staged file")
)

// Extractor pulls plain text out of staged PDF files.
type Extractor struct {
	readPDF func(data []byte) (string, error)
}

// New returns an Extractor backed by github.com/ledongthuc/pdf.
func New() *Extractor {
	return &Extractor{readPDF: extractPDF}
}

// Supports reports whether text can be extracted from the content type.
func Supports(contentType string) bool {
	return staging.NormalizeContentType(contentType) == staging.MimePDF
}

// Extract reads the staged file at path and returns its plain text.
func (e *Extractor) Extract(ctx context.Context, path string, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !Supports(contentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, staging.NormalizeContentType(contentType))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}
	text, err := e.readPDF(data)
	if err != nil {
		// Encrypted and malformed files are indistinguishable from image-only scans to the caller.
		return "", fmt.Errorf("%w: %v", ErrEmptyContent, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyContent
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
