package staging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/machineskills/console/internal/media"
)

// PreviewPrefix is the URL path under which previews are served.
const PreviewPrefix = "/previews/"

const stagedSuffix = ".upload"

var (
	// ErrTooLarge rejects files above the configured size limit.
	ErrTooLarge = errors.New("staging: file too large")
	// ErrUnsupportedType rejects anything that is not an image.
	ErrUnsupportedType = errors.New("staging: unsupported file type")
	// ErrNotStaged indicates a file handle that this store did not stage.
	ErrNotStaged = errors.New("staging: file not staged")
	// ErrUnknownPreview indicates a released or never issued preview token.
	ErrUnknownPreview = errors.New("staging: unknown preview")
)

// Config configures a Store.
type Config struct {
	Dir      string
	MaxBytes int64
	Logger   *slog.Logger
}

type stagedFile struct {
	path        string
	contentType string
	size        int64
	refs        int
}

// Store keeps uploaded form files on disk until they are saved or discarded
// and serves previews of them. It implements media.Previewer and
// media.Retainer.
type Store struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger

	mu       sync.Mutex
	files    map[string]*stagedFile
	previews map[string]string
}

// New prepares the staging directory.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("staging: directory required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("staging: create dir: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		logger:   logger,
		files:    make(map[string]*stagedFile),
		previews: make(map[string]string),
	}, nil
}

// Stage copies r to disk, sniffs its type and returns a handle to it.
func (s *Store) Stage(name string, r io.Reader) (media.File, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+stagedSuffix)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return media.File{}, fmt.Errorf("staging: create: %w", err)
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return media.File{}, fmt.Errorf("staging: write: %w", err)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		_ = os.Remove(path)
		return media.File{}, fmt.Errorf("%w: %s", ErrTooLarge, name)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return media.File{}, fmt.Errorf("staging: detect type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		_ = os.Remove(path)
		return media.File{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, mt.String())
	}

	contentType := mt.String()
	s.mu.Lock()
	s.files[id] = &stagedFile{path: path, contentType: contentType, size: size}
	s.mu.Unlock()

	return media.NewFile(id, filepath.Base(name), contentType, size, func() (io.ReadCloser, error) {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, media.ErrFileUnavailable
		}
		return f, err
	}), nil
}

// Discard removes a staged file that never received a preview.
func (s *Store) Discard(file media.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok || sf.refs > 0 {
		return
	}
	s.removeLocked(file.ID, sf)
}

// CreatePreview registers a fresh preview token for a staged file.
func (s *Store) CreatePreview(file media.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return "", ErrNotStaged
	}
	token := uuid.NewString()
	s.previews[token] = file.ID
	sf.refs++
	return PreviewPrefix + token, nil
}

// ReleasePreview unregisters a preview. Staged bytes are deleted once no
// preview or pin references them.
func (s *Store) ReleasePreview(uri string) {
	token := strings.TrimPrefix(uri, PreviewPrefix)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.previews[token]
	if !ok {
		s.logger.Warn("release of unknown preview", slog.String("uri", uri))
		return
	}
	delete(s.previews, token)
	sf, ok := s.files[id]
	if !ok {
		return
	}
	sf.refs--
	if sf.refs <= 0 {
		s.removeLocked(id, sf)
	}
}

// Retain pins the bytes of a staged file independently of its previews.
func (s *Store) Retain(file media.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return ErrNotStaged
	}
	sf.refs++
	return nil
}

// Release drops a pin taken by Retain. The bytes are deleted once neither a
// pin nor a preview references them.
func (s *Store) Release(file media.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return
	}
	sf.refs--
	if sf.refs <= 0 {
		s.removeLocked(file.ID, sf)
	}
}

func (s *Store) removeLocked(id string, sf *stagedFile) {
	delete(s.files, id)
	if err := os.Remove(sf.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove staged file", slog.String("path", sf.path), slog.Any("error", err))
	}
}

// ActivePreviews reports the number of live preview tokens.
func (s *Store) ActivePreviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}

// Preview opens the bytes behind a preview token.
func (s *Store) Preview(token string) (*os.File, string, error) {
	s.mu.Lock()
	id, ok := s.previews[token]
	var sf *stagedFile
	if ok {
		sf = s.files[id]
	}
	s.mu.Unlock()
	if sf == nil {
		return nil, "", ErrUnknownPreview
	}
	f, err := os.Open(sf.path)
	if err != nil {
		return nil, "", err
	}
	return f, sf.contentType, nil
}

// Sweep removes staged files older than olderThan that are not referenced.
func (s *Store) Sweep(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	live := make(map[string]struct{}, len(s.files))
	for _, sf := range s.files {
		if sf.refs > 0 {
			live[sf.path] = struct{}{}
		}
	}
	s.mu.Unlock()
	removed, err := SweepDir(s.dir, time.Now().Add(-olderThan), live)

	s.mu.Lock()
	for id, sf := range s.files {
		if sf.refs > 0 {
			continue
		}
		if _, statErr := os.Stat(sf.path); errors.Is(statErr, os.ErrNotExist) {
			delete(s.files, id)
		}
	}
	s.mu.Unlock()
	return removed, err
}

// SweepDir deletes staged files in dir modified before cutoff, skipping keep.
func SweepDir(dir string, cutoff time.Time, keep map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stagedSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if _, ok := keep[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
