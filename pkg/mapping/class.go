package mapping

const constructorName = "<init>"

// ClassMapping is the symbol-table record of one class. Classes that no
// mapping table mentions are identity-mapped (ObfuscatedName == Name).
// Parent and Interfaces point at shared records in the same Table and may
// be filled in after construction.
type ClassMapping struct {
	ObfuscatedName string
	Name           string
	Fields         Members
	Methods        Members
	Parent         *ClassMapping
	Interfaces     []*ClassMapping
}

// NewClassMapping returns a record renaming obfuscated to name.
func NewClassMapping(obfuscated, name string) *ClassMapping {
	return &ClassMapping{ObfuscatedName: obfuscated, Name: name}
}

// NewIdentity returns a record for a class that keeps its name.
func NewIdentity(name string) *ClassMapping {
	return &ClassMapping{ObfuscatedName: name, Name: name}
}

// IsIdentity reports whether the class keeps its name.
func (c *ClassMapping) IsIdentity() bool {
	return c.ObfuscatedName == c.Name
}

// FindField looks a field up in this class and, with searchAncestors, in
// the superclass chain. Interfaces are not searched.
func (c *ClassMapping) FindField(name, desc string, obfuscated, searchAncestors bool) (Member, bool) {
	if m, ok := c.Fields.Find(name, desc, obfuscated); ok {
		return m, true
	}
	if searchAncestors && c.Parent != nil {
		return c.Parent.FindField(name, desc, obfuscated, true)
	}
	return Member{}, false
}

// FindMethod looks a method up in this class, then the superclass chain,
// then each interface in declaration order. Constructors are looked up at
// most one level up and never in interfaces.
func (c *ClassMapping) FindMethod(name, desc string, obfuscated, searchAncestors bool) (Member, bool) {
	if m, ok := c.Methods.Find(name, desc, obfuscated); ok {
		return m, true
	}
	if !searchAncestors {
		return Member{}, false
	}
	ctor := name == constructorName
	if c.Parent != nil {
		if m, ok := c.Parent.FindMethod(name, desc, obfuscated, !ctor); ok {
			return m, true
		}
	}
	if ctor {
		return Member{}, false
	}
	for _, itf := range c.Interfaces {
		if m, ok := itf.FindMethod(name, desc, obfuscated, true); ok {
			return m, true
		}
	}
	return Member{}, false
}
