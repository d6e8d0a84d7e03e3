package agents

import (
	"github.com/talgya/rim-radio/internal/effects"
)

// Roster is the registry of agents, keyed by ID. It resolves the weak
// references held by effect trackers.
type Roster struct {
	list  []*Agent
	index map[AgentID]*Agent
}

var _ effects.Registry = (*Roster)(nil)

// NewRoster creates a roster from an initial set of agents.
func NewRoster(ag []*Agent) *Roster {
	r := &Roster{index: make(map[AgentID]*Agent, len(ag))}
	for _, a := range ag {
		r.Add(a)
	}
	return r
}

// Add registers an agent, replacing any agent with the same ID.
func (r *Roster) Add(a *Agent) {
	if old, ok := r.index[a.ID]; ok {
		for i, x := range r.list {
			if x == old {
				r.list[i] = a
				break
			}
		}
	} else {
		r.list = append(r.list, a)
	}
	r.index[a.ID] = a
}

// Remove drops an agent from the roster entirely.
func (r *Roster) Remove(id AgentID) {
	a, ok := r.index[id]
	if !ok {
		return
	}
	delete(r.index, id)
	for i, x := range r.list {
		if x == a {
			r.list = append(r.list[:i], r.list[i+1:]...)
			break
		}
	}
}

// Get returns the agent with the given ID, or nil.
func (r *Roster) Get(id AgentID) *Agent {
	return r.index[id]
}

// All returns agents in insertion order. The slice must not be modified.
func (r *Roster) All() []*Agent {
	return r.list
}

// Len returns the number of agents.
func (r *Roster) Len() int {
	return len(r.list)
}

// MaxID returns the highest agent ID in the roster.
func (r *Roster) MaxID() AgentID {
	var maxID AgentID
	for _, a := range r.list {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	return maxID
}

// Lookup resolves a weak reference to a living agent of the same generation.
func (r *Roster) Lookup(ref effects.ListenerRef) (effects.Listener, bool) {
	a, ok := r.index[AgentID(ref.ID)]
	if !ok || a.Gen != ref.Gen || !a.Alive {
		return nil, false
	}
	return a, true
}
