package remap

// Guard is the set of class names that resolution must not enter: classes
// already in flight, already processed, or known to be unresolvable. One
// Guard is shared by reference across a whole remap operation.
type Guard map[string]struct{}

// NewGuard returns a guard holding seeds.
func NewGuard(seeds ...string) Guard {
	g := make(Guard, len(seeds))
	for _, s := range seeds {
		g.Add(s)
	}
	return g
}

// Has reports whether name is guarded.
func (g Guard) Has(name string) bool {
	_, ok := g[name]
	return ok
}

// Add guards name.
func (g Guard) Add(name string) {
	g[name] = struct{}{}
}
