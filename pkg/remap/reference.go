package remap

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/apex/log"

	"github.com/daimatz/jremap/pkg/archive"
	"github.com/daimatz/jremap/pkg/classfile"
	"github.com/daimatz/jremap/pkg/mapping"
)

// LoadReference seeds the table with the class hierarchy of an archive
// that was already renamed, typically the deobfuscated platform archive a
// mod is compiled against. Nothing is rewritten.
func (r *Remapper) LoadReference(ctx context.Context, path string) error {
	src, err := archive.Open(ctx, path)
	if err != nil {
		return err
	}
	defer src.Close()
	return r.LoadReferenceClasses(src.Classes)
}

type header struct {
	name       string
	super      string
	interfaces []string
}

// LoadReferenceClasses is LoadReference over classes already in memory.
func (r *Remapper) LoadReferenceClasses(classes []archive.Class) error {
	headers := make([]header, 0, len(classes))
	for _, c := range classes {
		cf, err := classfile.ParseBytes(c.Data)
		if err != nil {
			return fmt.Errorf("reference: parsing %s: %w", c.Name, err)
		}
		name, err := cf.ClassName()
		if err != nil {
			return fmt.Errorf("reference: %s: %w", c.Name, err)
		}
		itfs, err := cf.InterfaceNames()
		if err != nil {
			return fmt.Errorf("reference: %s: %w", c.Name, err)
		}
		headers = append(headers, header{name: name, super: cf.SuperClassName(), interfaces: itfs})
	}

	// Register every class first so that parents declared later in the
	// archive can be wired.
	added := 0
	for _, h := range headers {
		if r.known(h.name) == nil && !strings.HasPrefix(h.name, r.prefix) {
			r.table.AddIdentity(h.name, nil, nil)
			added++
		}
	}

	wired := 0
	for _, h := range headers {
		c := r.known(h.name)
		if c == nil {
			continue
		}
		if parent := r.known(h.super); parent != nil && c.Parent == nil {
			c.Parent = parent
			wired++
		}
		for _, itfName := range h.interfaces {
			itf := r.known(itfName)
			if itf == nil || slices.Contains(c.Interfaces, itf) {
				continue
			}
			c.Interfaces = append(c.Interfaces, itf)
			wired++
		}
	}
	r.log.WithFields(log.Fields{"classes": len(headers), "added": added, "links": wired}).Info("loaded reference hierarchy")
	return nil
}

func (r *Remapper) known(name string) *mapping.ClassMapping {
	if name == "" || strings.HasPrefix(name, r.prefix) {
		return nil
	}
	return r.table.Find(name)
}
