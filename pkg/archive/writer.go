package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
)

const outputMode = 0o644

// Writer builds an output archive in a temporary file next to its
// destination. Nothing appears at the destination until Commit.
type Writer struct {
	path string
	tmp  *os.File
	zw   *zip.Writer
	done bool
}

// Create starts an archive that Commit will move to path.
func Create(path string) (*Writer, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("archive: creating %s: %w", path, err)
	}
	return &Writer{path: path, tmp: tmp, zw: zip.NewWriter(tmp)}, nil
}

// Copy writes f verbatim, without recompressing it.
func (w *Writer) Copy(f *zip.File) error {
	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("archive: copying %s: %w", f.Name, err)
	}
	return nil
}

// Add writes a deflated entry. Entries carry no timestamp so that equal
// input produces byte-identical archives.
func (w *Writer) Add(name string, data []byte) error {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("archive: adding %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("archive: writing %s: %w", name, err)
	}
	return nil
}

// AddClass writes a class entry.
func (w *Writer) AddClass(c Class) error {
	return w.Add(c.EntryName(), c.Data)
}

// Commit finishes the archive and atomically moves it into place.
func (w *Writer) Commit() error {
	if w.done {
		return fmt.Errorf("archive: %s already finished", w.path)
	}
	w.done = true
	if err := w.zw.Close(); err != nil {
		w.discard()
		return fmt.Errorf("archive: finishing %s: %w", w.path, err)
	}
	// CreateTemp makes the file owner-only.
	if err := w.tmp.Chmod(outputMode); err != nil {
		w.discard()
		return fmt.Errorf("archive: chmod %s: %w", w.path, err)
	}
	if err := w.tmp.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("archive: syncing %s: %w", w.path, err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("archive: closing %s: %w", w.path, err)
	}
	if err := os.Rename(w.tmp.Name(), w.path); err != nil {
		os.Remove(w.tmp.Name())
		return fmt.Errorf("archive: renaming into %s: %w", w.path, err)
	}
	return nil
}

// Abort discards the archive. It is a no-op after Commit.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.zw.Close()
	w.discard()
}

func (w *Writer) discard() {
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}
