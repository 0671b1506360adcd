package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps uploads at 10 MB.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("only PDF and plain text files are supported")
	ErrEmpty           = errors.New("file contains no extractable text")
	ErrUnreadable      = errors.New("file could not be read")
)

// Result is the outcome of one extraction. On failure Success is false and
// Error carries the user-facing reason.
type Result struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename"`
	MIME      string `json:"mime"`
	SizeBytes int64  `json:"size_bytes"`
	Text      string `json:"-"`
	PageCount int    `json:"page_count"`
	Error     string `json:"error,omitempty"`
}

// Extractor turns an uploaded client document into plain text.
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (Result, error)
}

// FileExtractor sniffs the content type and extracts PDF or plain text.
type FileExtractor struct {
	MaxBytes int64
	logger   *zap.Logger
}

func NewFileExtractor(maxBytes int64, logger *zap.Logger) *FileExtractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileExtractor{MaxBytes: maxBytes, logger: logger.With(zap.String("module", "document"))}
}

func (e *FileExtractor) Extract(ctx context.Context, filename string, r io.Reader) (Result, error) {
	res := Result{Filename: filename}
	fail := func(err error) (Result, error) {
		res.Success = false
		res.Text = ""
		res.Error = userMessage(err, e.MaxBytes)
		e.logger.Warn("document extraction failed", zap.String("filename", filename), zap.Error(err))
		return res, err
	}

	data, err := io.ReadAll(io.LimitReader(r, e.MaxBytes+1))
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUnreadable, err))
	}
	if int64(len(data)) > e.MaxBytes {
		return fail(ErrTooLarge)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	res.SizeBytes = int64(len(data))
	if len(data) == 0 {
		return fail(ErrEmpty)
	}

	mt := mimetype.Detect(data)
	res.MIME = mt.String()

	var text string
	switch {
	case mt.Is("application/pdf"):
		text, res.PageCount, err = extractPDF(data)
	case isText(mt):
		text, res.PageCount = string(data), 1
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}
	if err != nil {
		return fail(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fail(ErrEmpty)
	}
	res.Text = text
	res.Success = true
	e.logger.Info("document extracted",
		zap.String("filename", filename),
		zap.String("mime", res.MIME),
		zap.Int("pages", res.PageCount),
		zap.Int("chars", len(text)))
	return res, nil
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// extractPDF reads every page's plain text. The pdf package panics on some
// malformed inputs, so panics are turned into ErrUnreadable.
func extractPDF(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return buf.String(), reader.NumPage(), nil
}

func userMessage(err error, maxBytes int64) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "File is too large. Maximum allowed: " + FormatSize(maxBytes)
	case errors.Is(err, ErrUnsupportedType):
		return "Select a valid PDF or text file."
	case errors.Is(err, ErrEmpty):
		return "No text could be extracted from the file."
	default:
		return "Could not process the file."
	}
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary units, e.g. 1536 -> "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i, div := 0, int64(1)
	for i < len(sizeUnits)-1 && n >= div*1024 {
		i++
		div *= 1024
	}
	v := math.Round(float64(n)/float64(div)*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
