// Package effects applies timed status effects to listeners and decides which
// effect each listener gets after a listening session.
package effects

import "fmt"

// ListenerRef is a weak reference to a listener: a stable ID plus the
// generation it was issued under. It never keeps the listener alive.
type ListenerRef struct {
	ID  uint64 `json:"id"`
	Gen uint32 `json:"gen"`
}

// String formats the reference as id@gen.
func (r ListenerRef) String() string {
	return fmt.Sprintf("%d@%d", r.ID, r.Gen)
}

// Listener is anything that can carry status effects.
type Listener interface {
	Ref() ListenerRef
	SetStatus(kind string, severity float64)
	ClearStatus(kind string)
}

// Registry resolves weak references against the set of live listeners.
// A false result is the normal outcome for a listener that is gone.
type Registry interface {
	Lookup(ref ListenerRef) (Listener, bool)
}

// Definition describes one status effect kind.
type Definition struct {
	Kind        string  `yaml:"kind" json:"kind"`
	Label       string  `yaml:"label" json:"label"`
	MoodPerUnit float64 `yaml:"mood_per_unit" json:"mood_per_unit"` // Mood offset at severity 1.0
	Negative    bool    `yaml:"negative" json:"negative"`
}

// Catalog maps effect kinds to their definitions.
type Catalog struct {
	defs map[string]Definition
}

// NewCatalog builds a catalog from a list of definitions. Later entries with
// the same kind replace earlier ones.
func NewCatalog(defs ...Definition) *Catalog {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.defs[d.Kind] = d
	}
	return c
}

// Lookup returns the definition for kind, if one is registered.
func (c *Catalog) Lookup(kind string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	d, ok := c.defs[kind]
	return d, ok
}

// Len returns the number of registered definitions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}
