package staging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const sniffLen = 3072

// Upload is one incoming document.
type Upload struct {
	FileName    string
	ContentType string
	// Size is the declared size, or a negative value when unknown.
	Size int64
	Body io.Reader
}

// Staged describes a file written to the staging directory.
type Staged struct {
	Path        string
	FileName    string
	ContentType string
	SizeBytes   int64
}

// Entry is a file found in the staging directory.
type Entry struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Stager writes uploads into a single flat staging directory.
type Stager struct {
	dir      string
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// New creates the staging directory if needed.
func New(dir string, maxBytes int64) (*Stager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: staging dir is empty", ErrFilesystem)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve staging dir: %v", ErrFilesystem, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", ErrFilesystem, err)
	}
	return &Stager{
		dir:      abs,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    func() string { return uuid.NewString()[:8] },
	}, nil
}

// Dir returns the absolute staging directory.
func (s *Stager) Dir() string { return s.dir }

// Stage validates the upload and writes it under a collision-free name.
// Rejected uploads never touch the filesystem; failed writes leave nothing behind.
func (s *Stager) Stage(ctx context.Context, ownerID string, up Upload) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	if up.Body == nil {
		return Staged{}, fmt.Errorf("%w: missing file", ErrValidation)
	}
	if up.Size > s.maxBytes {
		return Staged{}, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, s.maxBytes)
	}

	br := bufio.NewReaderSize(up.Body, sniffLen)
	contentType := NormalizeContentType(up.ContentType)
	if isGeneric(contentType) {
		head, err := br.Peek(sniffLen)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return Staged{}, fmt.Errorf("%w: read upload: %v", ErrFilesystem, err)
		}
		contentType = NormalizeContentType(mimetype.Detect(head).String())
	}
	ext, ok := allowed[contentType]
	if !ok {
		return Staged{}, fmt.Errorf("%w: unsupported content type %q", ErrValidation, contentType)
	}

	name := s.stagedName(ownerID, ext)
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Staged{}, fmt.Errorf("%w: create: %v", ErrFilesystem, err)
	}

	written, copyErr := io.Copy(f, io.LimitReader(br, s.maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		os.Remove(path)
		return Staged{}, fmt.Errorf("%w: write: %v", ErrFilesystem, copyErr)
	case closeErr != nil:
		os.Remove(path)
		return Staged{}, fmt.Errorf("%w: close: %v", ErrFilesystem, closeErr)
	case written > s.maxBytes:
		os.Remove(path)
		return Staged{}, fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, s.maxBytes)
	case written == 0:
		os.Remove(path)
		return Staged{}, fmt.Errorf("%w: empty file", ErrValidation)
	}

	return Staged{
		Path:        path,
		FileName:    displayName(up.FileName, ext),
		ContentType: contentType,
		SizeBytes:   written,
	}, nil
}

// Open opens a staged file for reading.
func (s *Stager) Open(path string) (io.ReadCloser, error) {
	if err := s.owns(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrFilesystem, err)
	}
	return f, nil
}

// Remove deletes a staged file. A file that is already gone counts as removed.
func (s *Stager) Remove(path string) error {
	if err := s.owns(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove: %v", ErrFilesystem, err)
	}
	return nil
}

// List returns the regular files currently in the staging directory.
func (s *Stager) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrFilesystem, err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, Entry{
			Path:    filepath.Join(s.dir, de.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return out, nil
}

func (s *Stager) owns(path string) error {
	if filepath.Dir(filepath.Clean(path)) != s.dir {
		return fmt.Errorf("%w: path %q is outside the staging dir", ErrFilesystem, path)
	}
	return nil
}

// stagedName embeds the owner and a nanosecond timestamp; the random suffix
// separates uploads landing on the same clock tick.
func (s *Stager) stagedName(ownerID string, ext string) string {
	return safeOwner(ownerID) + "_" + strconv.FormatInt(s.now().UTC().UnixNano(), 10) + "_" + s.newID() + ext
}

func safeOwner(ownerID string) string {
	var b strings.Builder
	for _, r := range ownerID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
		if b.Len() >= 64 {
			break
		}
	}
	if b.Len() == 0 {
		return "anon"
	}
	return b.String()
}

func displayName(fileName, ext string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if base == "." || base == "/" || base == "" || strings.Contains(base, "..") {
		return "resume" + ext
	}
	return base
}
