// Package archive reads and writes the zip/jar archives that carry class
// files.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

const classSuffix = ".class"

// Class is one class entry, named by its entry name without the .class
// suffix. That is the internal class name, except for copies under a
// directory such as META-INF/versions/N/.
type Class struct {
	Name string
	Data []byte
}

// EntryName returns the zip entry name of the class.
func (c Class) EntryName() string {
	return c.Name + classSuffix
}

// Archive is an opened input archive. Class entries are buffered in entry
// order; every other entry (manifest, resources, directories) is kept for
// raw passthrough and stays readable until Close.
type Archive struct {
	Path      string
	Classes   []Class
	Resources []*zip.File

	zr *zip.ReadCloser
}

// Open reads every class entry of the archive at path into memory.
// Entries are decompressed in parallel; the result keeps entry order.
func Open(ctx context.Context, path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	a := &Archive{Path: path, zr: zr}

	var classFiles []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, classSuffix) {
			a.Resources = append(a.Resources, f)
			continue
		}
		classFiles = append(classFiles, f)
	}

	a.Classes = make([]Class, len(classFiles))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, f := range classFiles {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readEntry(f)
			if err != nil {
				return fmt.Errorf("archive: reading %s: %w", f.Name, err)
			}
			a.Classes[i] = Class{Name: strings.TrimSuffix(f.Name, classSuffix), Data: data}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		zr.Close()
		return nil, err
	}

	log.Debugf("archive: %s: %d classes, %d other entries", path, len(a.Classes), len(a.Resources))
	return a, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close releases the underlying zip reader.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// ClassMap indexes classes by entry name.
func ClassMap(classes []Class) map[string][]byte {
	m := make(map[string][]byte, len(classes))
	for _, c := range classes {
		m[c.Name] = c.Data
	}
	return m
}
