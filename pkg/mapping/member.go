// Package mapping holds the symbol table that translates obfuscated class,
// field and method names into readable ones, and the loaders for the
// structural (SRG) and identifier-substitution (CSV) mapping tables.
package mapping

// Member is one known rename of a field or method. Field members loaded
// from SRG tables carry empty descriptors: the type is not tracked and only
// the name may be rewritten.
type Member struct {
	ObfuscatedName string
	ObfuscatedDesc string
	Name           string
	Desc           string
}

type memberKey struct {
	name string
	desc string
}

// Members indexes renames by (name, descriptor) in both namespaces.
type Members struct {
	obfuscated map[memberKey]Member
	real       map[memberKey]Member
}

// Put records a rename.
func (m *Members) Put(obfName, obfDesc, name, desc string) {
	if m.obfuscated == nil {
		m.obfuscated = make(map[memberKey]Member)
		m.real = make(map[memberKey]Member)
	}
	mm := Member{ObfuscatedName: obfName, ObfuscatedDesc: obfDesc, Name: name, Desc: desc}
	m.obfuscated[memberKey{obfName, obfDesc}] = mm
	m.real[memberKey{name, desc}] = mm
}

// Find looks a member up by name and descriptor in the obfuscated or real
// namespace.
func (m *Members) Find(name, desc string, obfuscated bool) (Member, bool) {
	idx := m.real
	if obfuscated {
		idx = m.obfuscated
	}
	mm, ok := idx[memberKey{name, desc}]
	return mm, ok
}

// Len returns the number of recorded renames.
func (m *Members) Len() int {
	return len(m.obfuscated)
}
