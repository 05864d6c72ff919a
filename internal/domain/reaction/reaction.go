// Package reaction models the reaction reference set of MAGI: reactions and
// their participant compounds, the reaction ↔ reference-sequence join, and
// the compound-to-reaction links produced by compound connection.
package reaction

import (
	"sort"
	"strings"
)

// Reaction is one immutable row of the reaction reference table.
type Reaction struct {
	ID int
	// Compounds holds the participant compound identifiers (InChIKeys).
	Compounds []string
	// Refseqs holds the reference-sequence identifiers of enzymes known to
	// catalyse the reaction.
	Refseqs []string
	// EC is the enzyme-classification code set, "|ec1|ec2|" or empty.
	EC string
	// DatabaseID is the identifier of the reaction in its source database.
	DatabaseID string
}

// SplitRefseqs splits a pipe-delimited reference-sequence field, dropping
// empty entries.
func SplitRefseqs(field string) []string {
	var out []string
	for _, r := range strings.Split(field, "|") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Index is the read-only lookup structure over the reaction table.
type Index struct {
	reactions []Reaction
	byID      map[int]int
	byRefseq  map[string][]int
}

// NewIndex builds the lookup structure.  Reactions keep their input order;
// every lookup returns ids in that order.
func NewIndex(reactions []Reaction) *Index {
	idx := &Index{
		reactions: append([]Reaction(nil), reactions...),
		byID:      make(map[int]int, len(reactions)),
		byRefseq:  make(map[string][]int),
	}
	for i, r := range idx.reactions {
		idx.byID[r.ID] = i
		for _, ref := range r.Refseqs {
			idx.byRefseq[ref] = append(idx.byRefseq[ref], r.ID)
		}
	}
	return idx
}

// Len returns the number of reactions.
func (x *Index) Len() int { return len(x.reactions) }

// Get returns the reaction with the given id.
func (x *Index) Get(id int) (Reaction, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Reaction{}, false
	}
	return x.reactions[i], true
}

// DatabaseID returns the external database id of a reaction, or "".
func (x *Index) DatabaseID(id int) string {
	r, _ := x.Get(id)
	return r.DatabaseID
}

// FindByCompound returns the ids of reactions with a participant whose
// identifier contains key.  key may be one, two or three block.
func (x *Index) FindByCompound(key string) []int {
	return x.FindByAny([]string{key})
}

// FindByAny returns the ids of reactions with a participant containing any
// of keys, the union used for tautomer searches.
func (x *Index) FindByAny(keys []string) []int {
	var ids []int
	for _, r := range x.reactions {
		if participates(r, keys) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func participates(r Reaction, keys []string) bool {
	for _, c := range r.Compounds {
		for _, k := range keys {
			if k != "" && strings.Contains(c, k) {
				return true
			}
		}
	}
	return false
}

// ReactionsForRefseq returns the reactions whose reference sequences include
// refseq: the reaction ↔ reference-sequence join table keyed by sequence.
func (x *Index) ReactionsForRefseq(refseq string) []int {
	return x.byRefseq[refseq]
}

// RefseqsOf returns the distinct reference sequences of the given reactions,
// sorted for a deterministic search order.
func (x *Index) RefseqsOf(ids []int) []string {
	seen := make(map[string]struct{})
	for _, id := range ids {
		r, ok := x.Get(id)
		if !ok {
			continue
		}
		for _, ref := range r.Refseqs {
			seen[ref] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
