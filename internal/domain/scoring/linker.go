// Package scoring turns homology hits and compound links into MAGI scores:
// it joins hits to reactions, merges the compound and gene evidence, scores
// every combination and derives the compound- and gene-centric views.
package scoring

import (
	"sort"

	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
)

// Direction names a homology search of the reciprocal pair.
type Direction int

const (
	// GeneToReaction searches genome genes against reference sequences; the
	// subject is the reference sequence.
	GeneToReaction Direction = iota
	// ReactionToGene searches reference sequences against the genome; the
	// query is the reference sequence.
	ReactionToGene
)

func (d Direction) String() string {
	if d == ReactionToGene {
		return "reaction_to_gene"
	}
	return "gene_to_reaction"
}

// ReactionHit is a homology hit attached to one reaction of its reference
// sequence.
type ReactionHit struct {
	Query   string
	Subject string
	// ReactionID is nil when the reference sequence belongs to no reaction.
	ReactionID *int
	Score      float64
}

// Gene returns the genome-side identifier of the hit.
func (h ReactionHit) Gene(d Direction) string {
	if d == ReactionToGene {
		return h.Subject
	}
	return h.Query
}

func (h ReactionHit) reactionKey() int {
	if h.ReactionID == nil {
		return -1
	}
	return *h.ReactionID
}

// Linker joins homology hits to the reaction ↔ reference-sequence table.
type Linker struct {
	index *reaction.Index
}

// NewLinker returns a Linker over idx.
func NewLinker(idx *reaction.Index) *Linker {
	return &Linker{index: idx}
}

// Link attaches every hit to each reaction of its reference sequence; hits
// whose sequence has no reaction are kept with a nil reaction.  Per (query,
// reaction) only the highest scoring hit survives.  Rows come back sorted by
// query, then by descending score.
func (l *Linker) Link(hits []homology.Hit, dir Direction) []ReactionHit {
	var rows []ReactionHit
	for _, h := range hits {
		refseq := h.Subject
		if dir == ReactionToGene {
			refseq = h.Query
		}
		ids := l.index.ReactionsForRefseq(refseq)
		if len(ids) == 0 {
			rows = append(rows, ReactionHit{Query: h.Query, Subject: h.Subject, Score: h.Score})
			continue
		}
		for _, id := range ids {
			rows = append(rows, ReactionHit{Query: h.Query, Subject: h.Subject, ReactionID: reaction.IntPtr(id), Score: h.Score})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Query != rows[j].Query {
			return rows[i].Query < rows[j].Query
		}
		return rows[i].Score > rows[j].Score
	})

	type key struct {
		query    string
		reaction int
	}
	seen := make(map[key]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key{r.Query, r.reactionKey()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
