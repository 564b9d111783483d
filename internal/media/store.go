// Package media owns uploaded photo bytes and the display locators handed
// out for them. A locator stays valid until it is released; every locator
// is released exactly once.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// LocatorScheme prefixes every locator issued by MemoryStore.
const LocatorScheme = "blob:"

var (
	// ErrUnknownLocator is returned for locators this store never issued.
	ErrUnknownLocator = errors.New("media: unknown locator")
	// ErrAlreadyReleased is returned when a locator is released twice.
	ErrAlreadyReleased = errors.New("media: locator already released")
)

// Upload is a file handed to the workbench by the operator.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the byte length of the upload.
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// DetectMIME returns the declared MIME type or sniffs it from the content.
func (u Upload) DetectMIME() string {
	if u.MimeType != "" {
		return u.MimeType
	}
	return mimetype.Detect(u.Data).String()
}

// LoadFile reads a photo from disk.
func LoadFile(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, eris.Wrapf(err, "media: read %s", path)
	}
	return Upload{
		Name:     filepath.Base(path),
		MimeType: mimetype.Detect(data).String(),
		Data:     data,
	}, nil
}

// Store issues and releases display locators.
type Store interface {
	Acquire(Upload) (string, error)
	Release(locator string) error
	ReleaseAll() int
	Live() int
}

// MemoryStore keeps upload bytes in memory, keyed by locator.
type MemoryStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	released map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:    map[string][]byte{},
		released: map[string]struct{}{},
	}
}

// Acquire stores the upload and returns a fresh locator for it.
func (s *MemoryStore) Acquire(u Upload) (string, error) {
	if s == nil {
		return "", fmt.Errorf("media: nil store")
	}
	locator := LocatorScheme + uuid.NewString()
	data := make([]byte, len(u.Data))
	copy(data, u.Data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[locator] = data
	return locator, nil
}

// Open returns the bytes behind a live locator.
func (s *MemoryStore) Open(locator string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[locator]
	if !ok {
		if _, gone := s.released[locator]; gone {
			return nil, ErrAlreadyReleased
		}
		return nil, ErrUnknownLocator
	}
	return data, nil
}

// Release invalidates a locator.
func (s *MemoryStore) Release(locator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(locator)
}

// ReleaseAll invalidates every live locator and reports how many were released.
func (s *MemoryStore) ReleaseAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for locator := range s.blobs {
		if s.releaseLocked(locator) == nil {
			count++
		}
	}
	return count
}

// Live reports the number of locators not yet released.
func (s *MemoryStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

func (s *MemoryStore) releaseLocked(locator string) error {
	if _, ok := s.blobs[locator]; ok {
		delete(s.blobs, locator)
		s.released[locator] = struct{}{}
		return nil
	}
	if _, gone := s.released[locator]; gone {
		return ErrAlreadyReleased
	}
	return ErrUnknownLocator
}
