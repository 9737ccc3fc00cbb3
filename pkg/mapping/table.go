package mapping

import "sort"

// Table is the symbol table of one remap operation: every ClassMapping,
// indexed by obfuscated and by real name.
type Table struct {
	// Packages holds PK records, obfuscated package to real package.
	Packages map[string]string

	obfuscated map[string]*ClassMapping
	real       map[string]*ClassMapping
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		Packages:   make(map[string]string),
		obfuscated: make(map[string]*ClassMapping),
		real:       make(map[string]*ClassMapping),
	}
}

// Add indexes c under both of its names.
func (t *Table) Add(c *ClassMapping) {
	t.obfuscated[c.ObfuscatedName] = c
	t.real[c.Name] = c
}

// AddIdentity registers an identity mapping for a class no mapping table
// mentions. It is indexed by its real name only.
func (t *Table) AddIdentity(name string, parent *ClassMapping, interfaces []*ClassMapping) *ClassMapping {
	c := NewIdentity(name)
	c.Parent = parent
	c.Interfaces = interfaces
	t.real[name] = c
	return c
}

// FindObfuscated returns the class whose obfuscated name is name.
func (t *Table) FindObfuscated(name string) *ClassMapping {
	return t.obfuscated[name]
}

// FindReal returns the class whose real name is name.
func (t *Table) FindReal(name string) *ClassMapping {
	return t.real[name]
}

// Find looks name up in the obfuscated namespace, then the real one.
func (t *Table) Find(name string) *ClassMapping {
	if c := t.obfuscated[name]; c != nil {
		return c
	}
	return t.real[name]
}

// Len returns the number of distinct classes.
func (t *Table) Len() int {
	return len(t.Classes())
}

// Classes returns every distinct class sorted by real name.
func (t *Table) Classes() []*ClassMapping {
	seen := make(map[*ClassMapping]bool, len(t.real))
	var out []*ClassMapping
	for _, idx := range []map[string]*ClassMapping{t.real, t.obfuscated} {
		for _, c := range idx {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ObfuscatedName < out[j].ObfuscatedName
	})
	return out
}
