// Package remap rewrites the symbolic references of decoded classes from
// the obfuscated namespace into the real one, discovering the hierarchy of
// archive-private classes on demand.
package remap

import "github.com/daimatz/jremap/pkg/classfile"

// Pass is one renaming pass. Apply rewrites cf in place and reports whether
// any name actually changed. Passes run in a fixed order and later passes
// observe the names earlier ones produced.
type Pass interface {
	Name() string
	Apply(cf *classfile.ClassFile, r *Resolver, guard Guard) (bool, error)
}

// refSet tracks the constant-pool entries a pass has already rewritten, so
// that an entry shared by many instructions is rewritten once.
type refSet map[uint16]struct{}

func (s refSet) visit(index uint16) bool {
	if _, ok := s[index]; ok {
		return false
	}
	s[index] = struct{}{}
	return true
}
