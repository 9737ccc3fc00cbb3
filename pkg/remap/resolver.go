package remap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"

	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

const (
	// DefaultPlatformPrefix names classes owned by the platform runtime.
	// They are never decoded or renamed.
	DefaultPlatformPrefix = "java/"
	// rootClass seeds every guard.
	rootClass = "java/lang/Object"
)

// Emitter receives a class once every pass has run over it. entry is the
// archive entry it was loaded from and original its class name before
// rewriting. cf is nil for a class that could not be decoded.
type Emitter func(entry, original string, cf *classfile.ClassFile, changed bool) error

// Resolver answers "which ClassMapping is this name" for one remap
// operation, decoding and rewriting classes of the archive on first
// reference so that their hierarchy becomes known.
type Resolver struct {
	table  *mapping.Table
	loader ClassLoader
	passes []Pass
	prefix string
	log    log.Interface
	emit   Emitter

	missing   map[string]struct{}
	malformed map[string]struct{}
	depth     int
}

// NewResolver returns a resolver that materializes unknown classes from
// loader and rewrites them with passes, in order.
func NewResolver(table *mapping.Table, loader ClassLoader, passes ...Pass) *Resolver {
	return &Resolver{
		table:   table,
		loader:  loader,
		passes:  passes,
		prefix:  DefaultPlatformPrefix,
		log:     log.Log,
		missing:   make(map[string]struct{}),
		malformed: make(map[string]struct{}),
	}
}

// Table returns the symbol table being resolved against.
func (r *Resolver) Table() *mapping.Table { return r.table }

// Logger returns the logger passes should trace through.
func (r *Resolver) Logger() log.Interface { return r.log }

// Resolve returns the mapping for name, or nil when the class is a
// platform class, is currently being resolved, or cannot be found or
// decoded. An
// unknown class of the archive is rewritten by every pass before Resolve
// returns, which registers its mapping as a side effect.
func (r *Resolver) Resolve(name string, guard Guard) (*mapping.ClassMapping, error) {
	if name == "" || strings.HasPrefix(name, r.prefix) {
		return nil, nil
	}
	if c := r.table.Find(name); c != nil {
		return c, nil
	}
	if guard.Has(name) {
		return nil, nil
	}
	guard.Add(name)

	cf, err := r.loader.LoadClass(name)
	switch {
	case errors.Is(err, ErrClassNotFound):
		r.log.WithField("class", name).Debug("unresolved class")
		r.missing[name] = struct{}{}
		return nil, nil
	case errors.Is(err, ErrMalformedClass):
		r.Undecodable(name, err)
		return nil, nil
	case err != nil:
		return nil, err
	}

	r.depth++
	r.log.WithFields(log.Fields{"class": name, "depth": r.depth}).Debug("resolving")
	err = r.Process(name, cf, guard)
	r.depth--
	if err != nil {
		return nil, err
	}
	return r.table.FindReal(name), nil
}

// Process runs every pass over cf, which was decoded from the class name,
// and hands the result to the emitter.
func (r *Resolver) Process(name string, cf *classfile.ClassFile, guard Guard) error {
	guard.Add(name)
	original, err := cf.ClassName()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	changed := false
	for _, p := range r.passes {
		c, err := p.Apply(cf, r, guard)
		if err != nil {
			return fmt.Errorf("%s: %s pass: %w", name, p.Name(), err)
		}
		changed = changed || c
	}
	if r.emit != nil {
		return r.emit(name, original, cf, changed)
	}
	return nil
}

// Undecodable records that the bytes of name did not decode. The class is
// left as it is.
func (r *Resolver) Undecodable(name string, err error) {
	r.log.WithError(err).WithField("class", name).Warn("undecodable class left untouched")
	r.malformed[name] = struct{}{}
}

// Missing returns the classes that were referenced but could not be found,
// sorted.
func (r *Resolver) Missing() []string {
	return sorted(r.missing)
}

// Malformed returns the classes whose bytes did not decode, sorted.
func (r *Resolver) Malformed() []string {
	return sorted(r.malformed)
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
