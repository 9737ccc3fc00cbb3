package remap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/daimatz/jremap/pkg/classfile"
)

var (
	// ErrClassNotFound is returned by a ClassLoader that has no bytes for
	// a class.
	ErrClassNotFound = errors.New("class not found")
	// ErrMalformedClass is returned when the bytes of a class do not
	// decode.
	ErrMalformedClass = errors.New("malformed class")
)

// ClassLoader loads decoded classes by internal name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// ArchiveClassLoader decodes classes from the raw bytes of the archive
// being processed. Each class is decoded at most once; the cache is safe
// for concurrent use.
type ArchiveClassLoader struct {
	raw map[string][]byte

	mu    sync.Mutex
	cache map[string]*classfile.ClassFile
}

// NewArchiveClassLoader creates a loader over raw, keyed by class name.
func NewArchiveClassLoader(raw map[string][]byte) *ArchiveClassLoader {
	return &ArchiveClassLoader{
		raw:   raw,
		cache: make(map[string]*classfile.ClassFile),
	}
}

func (cl *ArchiveClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cf, ok := cl.cache[name]; ok {
		return cf, nil
	}
	data, ok := cl.raw[name]
	if !ok {
		return nil, fmt.Errorf("archive: %s: %w", name, ErrClassNotFound)
	}
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("archive: parsing %s: %w: %w", name, ErrMalformedClass, err)
	}
	cl.cache[name] = cf
	return cf, nil
}

// Bytes returns the undecoded bytes of name.
func (cl *ArchiveClassLoader) Bytes(name string) ([]byte, bool) {
	data, ok := cl.raw[name]
	return data, ok
}
