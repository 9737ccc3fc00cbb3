package remap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/daimatz/jremap/pkg/archive"
	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

// Remapper renames whole archives against one symbol table. Every remap
// call gets its own guard, decoded-class cache and resolver; the table is
// shared and grows as archive-private classes are discovered. A Remapper
// must not be used by more than one remap call at a time.
type Remapper struct {
	table  *mapping.Table
	passes []Pass
	prefix string
	log    log.Interface
}

// Option configures a Remapper.
type Option func(*Remapper)

// WithPasses replaces the default pass list. Passes run in the given order.
func WithPasses(passes ...Pass) Option {
	return func(r *Remapper) { r.passes = passes }
}

// WithPlatformPrefix changes the prefix of classes that are never renamed.
func WithPlatformPrefix(prefix string) Option {
	return func(r *Remapper) { r.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l log.Interface) Option {
	return func(r *Remapper) { r.log = l }
}

// New returns a Remapper over table. Without WithPasses only the
// structural pass runs.
func New(table *mapping.Table, opts ...Option) *Remapper {
	r := &Remapper{
		table:  table,
		passes: []Pass{StructuralPass{}},
		prefix: DefaultPlatformPrefix,
		log:    log.Log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the symbol table.
func (r *Remapper) Table() *mapping.Table { return r.table }

// Result describes one remap operation.
type Result struct {
	// Classes are the produced class entries in first-discovery order.
	Classes []archive.Class
	// Changed counts classes that were re-encoded.
	Changed int
	// Passthrough counts non-class entries copied verbatim.
	Passthrough int
	// Missing lists referenced classes that could not be found.
	Missing []string
	// Malformed lists classes whose bytes did not decode. They are
	// written out unchanged.
	Malformed []string
}

// session is the state of one remap operation.
type session struct {
	loader   *ArchiveClassLoader
	resolver *Resolver
	guard    Guard
	done     map[string]bool
	result   *Result
}

func (r *Remapper) newSession(classes []archive.Class) *session {
	s := &session{
		loader: NewArchiveClassLoader(archive.ClassMap(classes)),
		guard:  NewGuard(rootClass),
		done:   make(map[string]bool, len(classes)),
		result: &Result{},
	}
	s.resolver = NewResolver(r.table, s.loader, r.passes...)
	s.resolver.prefix = r.prefix
	s.resolver.log = r.log
	s.resolver.emit = s.emit
	return s
}

// emit records a processed class under its rewritten name, keeping the
// original bytes when no pass changed anything.
func (s *session) emit(entry, original string, cf *classfile.ClassFile, changed bool) error {
	s.done[entry] = true
	data, _ := s.loader.Bytes(entry)
	out := entry
	if changed {
		renamed, err := cf.ClassName()
		if err != nil {
			return fmt.Errorf("%s: %w", entry, err)
		}
		if data, err = cf.Encode(); err != nil {
			return fmt.Errorf("%s: re-encoding: %w", entry, err)
		}
		out = entryName(entry, original, renamed)
		s.result.Changed++
	}
	s.result.Classes = append(s.result.Classes, archive.Class{Name: out, Data: data})
	return nil
}

// entryName moves a renamed class to its new entry, keeping the directory
// the entry sits under when the class is not at the archive root
// (META-INF/versions/N/).
func entryName(entry, original, renamed string) string {
	dir, ok := strings.CutSuffix(entry, original)
	if !ok || (dir != "" && !strings.HasSuffix(dir, "/")) {
		return renamed
	}
	return dir + renamed
}

// RemapClasses rewrites every class exactly once. Classes are visited in
// the given order; a class referenced before its turn is rewritten on
// first reference, so the output follows first-discovery order.
func (r *Remapper) RemapClasses(classes []archive.Class) (*Result, error) {
	s := r.newSession(classes)
	for _, c := range classes {
		if s.done[c.Name] {
			continue
		}
		cf, err := s.loader.LoadClass(c.Name)
		if errors.Is(err, ErrMalformedClass) {
			s.resolver.Undecodable(c.Name, err)
			if err := s.emit(c.Name, c.Name, nil, false); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := s.resolver.Process(c.Name, cf, s.guard); err != nil {
			return nil, err
		}
	}
	s.result.Missing = s.resolver.Missing()
	s.result.Malformed = s.resolver.Malformed()
	for _, name := range s.result.Missing {
		r.log.WithField("class", name).Debug("left unresolved")
	}
	return s.result, nil
}

// RemapFile remaps the archive at in and writes the result to out. Non-class
// entries are copied verbatim, then every produced class is written. The
// output appears only once everything succeeded.
func (r *Remapper) RemapFile(ctx context.Context, in, out string) (*Result, error) {
	src, err := archive.Open(ctx, in)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	r.log.WithFields(log.Fields{"input": in, "classes": len(src.Classes)}).Info("remapping")

	res, err := r.RemapClasses(src.Classes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, err := archive.Create(out)
	if err != nil {
		return nil, err
	}
	defer w.Abort()
	for _, f := range src.Resources {
		if err := w.Copy(f); err != nil {
			return nil, err
		}
	}
	for _, c := range res.Classes {
		if err := w.AddClass(c); err != nil {
			return nil, err
		}
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}
	res.Passthrough = len(src.Resources)

	r.log.WithFields(log.Fields{
		"output":    out,
		"changed":   res.Changed,
		"missing":   len(res.Missing),
		"malformed": len(res.Malformed),
	}).Info("remapped")
	return res, nil
}
