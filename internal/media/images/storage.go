// Package images stores uploaded cover images and derives their previews.
package images

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxSize caps an uploaded image at 10MB.
const DefaultMaxSize = 10 * 1024 * 1024

// routePrefix is the URL path hosted images are served under.
const routePrefix = "/covers/"

var (
	// ErrUnsupportedType is returned for data that is not JPEG, PNG, WebP or GIF.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrTooLarge is returned for data above the configured size limit.
	ErrTooLarge = errors.New("image too large")
	// ErrEmpty is returned for zero-length uploads.
	ErrEmpty = errors.New("image data cannot be empty")
	// ErrInvalidRef is returned for refs that could escape the storage root.
	ErrInvalidRef = errors.New("invalid image reference")
)

// extensions maps sniffed content types to stored file extensions.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Ref identifies a stored image: {OwnerID}/{Name} under the storage root.
type Ref struct {
	OwnerID string
	Name    string
}

// Key returns the ref as a slash-separated storage key.
func (r Ref) Key() string {
	return r.OwnerID + "/" + r.Name
}

// Valid reports whether both parts are single, safe path segments.
func (r Ref) Valid() bool {
	return validSegment(r.OwnerID) && validSegment(r.Name)
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "\x00")
}

// Storage is the blob store for cover images. Files live under
// {basePath}/covers/{ownerID}/{uuid}{ext} and are served at
// {publicURL}/covers/{ownerID}/{uuid}{ext}.
// Thread-safe for concurrent operations.
type Storage struct {
	basePath  string
	publicURL string
	maxSize   int64
	mu        sync.RWMutex
}

// NewStorage creates a new Storage rooted at {basePath}/covers.
// publicURL is the externally visible server origin, e.g. http://localhost:8080.
func NewStorage(basePath, publicURL string, maxSize int64) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	storagePath := filepath.Join(basePath, "covers")
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers directory: %w", err)
	}

	return &Storage{
		basePath:  storagePath,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   maxSize,
	}, nil
}

// Sniff validates data and returns its content type.
func (s *Storage) Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), s.maxSize)
	}
	contentType := http.DetectContentType(data)
	if _, ok := extensions[contentType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return contentType, nil
}

// Put stores data for ownerID under a fresh unique key. suggestedName is
// only used to log and never becomes part of the key; the extension comes
// from the sniffed content type.
func (s *Storage) Put(ownerID string, data []byte, suggestedName string) (Ref, error) {
	if !validSegment(ownerID) {
		return Ref{}, fmt.Errorf("%w: owner %q", ErrInvalidRef, ownerID)
	}
	contentType, err := s.Sniff(data)
	if err != nil {
		return Ref{}, err
	}

	ref := Ref{OwnerID: ownerID, Name: uuid.NewString() + extensions[contentType]}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.basePath, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Ref{}, fmt.Errorf("failed to create owner directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ref.Name), data, 0o644); err != nil {
		return Ref{}, fmt.Errorf("failed to write image file %s: %w", suggestedName, err)
	}
	return ref, nil
}

// URL returns the retrieval URL for ref.
func (s *Storage) URL(ref Ref) string {
	return s.publicURL + routePrefix + url.PathEscape(ref.OwnerID) + "/" + url.PathEscape(ref.Name)
}

// RefFromURL reports whether raw points at an image hosted by this storage,
// and if so which one.
func (s *Storage) RefFromURL(raw string) (Ref, bool) {
	prefix := s.publicURL + routePrefix
	if raw == "" || !strings.HasPrefix(raw, prefix) {
		return Ref{}, false
	}
	rest := strings.TrimPrefix(raw, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	owner, name, ok := strings.Cut(rest, "/")
	if !ok {
		return Ref{}, false
	}
	owner, err1 := url.PathUnescape(owner)
	name, err2 := url.PathUnescape(name)
	if err1 != nil || err2 != nil {
		return Ref{}, false
	}

	ref := Ref{OwnerID: owner, Name: name}
	return ref, ref.Valid()
}

// Open opens the stored file for ref. The caller closes it.
func (s *Storage) Open(ref Ref) (*os.File, error) {
	if !ref.Valid() {
		return nil, ErrInvalidRef
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return os.Open(s.Path(ref))
}

// Get reads the stored bytes for ref.
func (s *Storage) Get(ref Ref) ([]byte, error) {
	if !ref.Valid() {
		return nil, ErrInvalidRef
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image not found for %s: %w", ref.Key(), err)
		}
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// Exists checks if an image exists for ref.
func (s *Storage) Exists(ref Ref) bool {
	if !ref.Valid() {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(ref))
	return err == nil
}

// Delete removes the image for ref. Deleting a missing image is not an error.
func (s *Storage) Delete(ref Ref) error {
	if !ref.Valid() {
		return ErrInvalidRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(ref)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete image file: %w", err)
	}
	return nil
}

// Hash computes the SHA256 of an image, hex-encoded for ETag use.
func (s *Storage) Hash(ref Ref) (string, error) {
	data, err := s.Get(ref)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Path returns the filesystem path for ref.
func (s *Storage) Path(ref Ref) string {
	return filepath.Join(s.basePath, ref.OwnerID, ref.Name)
}
