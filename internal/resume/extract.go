package resume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat/docxtxt"
)

// textFileName is the well-known file the analysis pipeline reads resume
// text from, one per user under the extractor's directory.
const textFileName = "text.txt"

// DefaultMaxBytes caps an uploaded resume.
const DefaultMaxBytes = 10 << 20 // 10MB

// ExtractionError reports that an uploaded resume could not be turned into text.
type ExtractionError struct {
	Filename string
	Msg      string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %q: %s: %v", e.Filename, e.Msg, e.Err)
	}
	return fmt.Sprintf("extracting %q: %s", e.Filename, e.Msg)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Upload is a resume file as received from the user.
type Upload struct {
	Filename string
	Data     []byte
}

// Extractor turns uploaded resumes into plain text and keeps that text at a
// well-known per-user location.
type Extractor struct {
	dir      string
	maxBytes int
}

// NewExtractor creates an Extractor writing text files under dir.
// If maxBytes is <= 0, it defaults to DefaultMaxBytes.
func NewExtractor(dir string, maxBytes int) *Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Extractor{dir: dir, maxBytes: maxBytes}
}

// TextPath returns the well-known resume text location for userID.
func (e *Extractor) TextPath(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(e.dir, userID, textFileName), nil
}

// Extract parses the upload and writes its text to TextPath(userID),
// returning that path. Failures are *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, userID string, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(up.Data) == 0 {
		return "", &ExtractionError{Filename: up.Filename, Msg: "file is empty"}
	}
	if len(up.Data) > e.maxBytes {
		return "", &ExtractionError{Filename: up.Filename, Msg: fmt.Sprintf("file exceeds %d bytes", e.maxBytes)}
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(up.Filename)); ext {
	case ".pdf":
		text, err = pdfText(up.Data)
	case ".docx":
		text, err = docxText(up.Data)
	case ".txt":
		if !utf8.Valid(up.Data) {
			err = errors.New("not valid UTF-8")
		}
		text = string(up.Data)
	default:
		return "", &ExtractionError{Filename: up.Filename, Msg: fmt.Sprintf("unsupported file type %q", ext)}
	}
	if err != nil {
		return "", &ExtractionError{Filename: up.Filename, Msg: "could not read document", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{Filename: up.Filename, Msg: "no text found in document"}
	}

	path, err := e.Materialize(userID, text)
	if err != nil {
		return "", &ExtractionError{Filename: up.Filename, Msg: "could not save extracted text", Err: err}
	}
	slog.Debug("resume extracted", "user", userID, "file", up.Filename, "chars", len(text))
	return path, nil
}

// Materialize writes text to TextPath(userID), replacing any previous
// content. Writing the same text twice leaves the same file.
func (e *Extractor) Materialize(userID, text string) (string, error) {
	path, err := e.TextPath(userID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating resume dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o600); err != nil {
		return "", fmt.Errorf("writing resume text: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replacing resume text: %w", err)
	}
	return path, nil
}

// ReadText reads a text file written by Extract or Materialize.
func ReadText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading resume text: %w", err)
	}
	return string(b), nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(b), nil
}

// docxText returns the document text of a .docx file.
func docxText(data []byte) (string, error) {
	text, err := docxtxt.BytesToStr(data)
	if err != nil {
		return "", fmt.Errorf("reading docx: %w", err)
	}
	return text, nil
}
