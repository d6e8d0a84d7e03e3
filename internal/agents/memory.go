// Mood memories: short-lived recollections (e.g. "listened to a great
// album") that shift mood until they expire.
package agents

import "sort"

const MaxMemories = 20

// Memory records a mood-affecting experience.
type Memory struct {
	Tick       uint64  `json:"tick"`
	Kind       string  `json:"kind"`
	Content    string  `json:"content"`
	MoodOffset float64 `json:"mood_offset"`
	ExpireTick uint64  `json:"expire_tick"` // 0 = never expires
}

// importance ranks memories for eviction: stronger feelings are kept.
func (m Memory) importance() float64 {
	if m.MoodOffset < 0 {
		return -m.MoodOffset
	}
	return m.MoodOffset
}

// AddMemory appends a memory to the agent's stream. A memory of the same kind
// replaces the older one. When full, drops the weakest memory to make room.
func AddMemory(a *Agent, m Memory) {
	for i := range a.Memories {
		if a.Memories[i].Kind == m.Kind {
			a.Memories[i] = m
			return
		}
	}

	if len(a.Memories) < MaxMemories {
		a.Memories = append(a.Memories, m)
		return
	}

	// Find the weakest memory and replace it.
	minIdx := 0
	for i := 1; i < len(a.Memories); i++ {
		if a.Memories[i].importance() < a.Memories[minIdx].importance() {
			minIdx = i
		}
	}
	if m.importance() > a.Memories[minIdx].importance() {
		a.Memories[minIdx] = m
	}
}

// ExpireMemories drops memories whose expiry tick has passed and returns how
// many were removed.
func ExpireMemories(a *Agent, tick uint64) int {
	kept := a.Memories[:0]
	for _, m := range a.Memories {
		if m.ExpireTick != 0 && tick >= m.ExpireTick {
			continue
		}
		kept = append(kept, m)
	}
	removed := len(a.Memories) - len(kept)
	a.Memories = kept
	return removed
}

// RecentMemories returns the most recent N memories ordered by tick descending.
func RecentMemories(a *Agent, count int) []Memory {
	if len(a.Memories) == 0 {
		return nil
	}

	// Copy and sort by tick descending.
	sorted := make([]Memory, len(a.Memories))
	copy(sorted, a.Memories)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Tick > sorted[j].Tick
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
