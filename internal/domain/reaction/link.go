package reaction

import "sort"

// Note tags how a compound reached a reaction.
type Note string

const (
	NoteDirect       Note = "direct"
	NoteFlatTautomer Note = "flat tautomer"
)

// Link connects an original compound to a candidate reaction, possibly
// through a chemical-network neighbor or a tautomer.
type Link struct {
	OriginalCompound string
	// Level is the chemical-network distance of Neighbor; 0 for the compound
	// itself.
	Level int
	// Neighbor is the neighbor identifier, "" for level 0.
	Neighbor string
	// ReactionID is nil when the search found nothing.
	ReactionID *int
	Note       Note
}

// HasReaction reports whether the link references a reaction.
func (l Link) HasReaction() bool { return l.ReactionID != nil }

// ReactionKey returns the reaction id or -1 when the link is empty.
func (l Link) ReactionKey() int {
	if l.ReactionID == nil {
		return -1
	}
	return *l.ReactionID
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BestLinks orders links by (note, level) ascending, "direct" before
// "flat tautomer" and lower levels first, and keeps the first occurrence of
// every (original compound, reaction) pair.  The sort is stable so links of
// equal rank keep their discovery order.
func BestLinks(links []Link) []Link {
	sorted := append([]Link(nil), links...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Note != sorted[j].Note {
			return sorted[i].Note < sorted[j].Note
		}
		return sorted[i].Level < sorted[j].Level
	})

	type key struct {
		compound string
		reaction int
	}
	seen := make(map[key]struct{}, len(sorted))
	out := sorted[:0]
	for _, l := range sorted {
		k := key{l.OriginalCompound, l.ReactionKey()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}
