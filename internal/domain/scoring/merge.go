package scoring

import (
	"github.com/TimothyStephens/magi/internal/domain/reaction"
)

// Merge integrates the compound links with both homology searches.  Compound
// links are left joined to the reaction-to-gene hits on reaction id; the
// result is outer joined to the gene-to-reaction hits on gene.  Links without
// a gene never match the gene-to-reaction side.  Output keeps left rows in
// order, each followed by its gene matches, then the gene-to-reaction rows
// no compound reached.  Exact duplicate rows are dropped.
func Merge(links []CompoundLink, r2g, g2r []ReactionHit) []Record {
	r2gByReaction := make(map[int][]ReactionHit)
	for _, h := range r2g {
		if h.ReactionID == nil {
			continue
		}
		r2gByReaction[*h.ReactionID] = append(r2gByReaction[*h.ReactionID], h)
	}

	var left []Record
	for _, l := range links {
		base := Record{
			OriginalCompound: l.OriginalCompound,
			HasCompound:      true,
			CompoundScore:    l.CompoundScore,
			Level:            l.Level,
			Neighbor:         l.Neighbor,
			Note:             l.Note,
			ReactionIDR2G:    l.ReactionID,
		}
		var matches []ReactionHit
		if l.ReactionID != nil {
			matches = r2gByReaction[*l.ReactionID]
		}
		if len(matches) == 0 {
			left = append(left, base)
			continue
		}
		for _, h := range matches {
			rec := base
			rec.GeneR2G = h.Gene(ReactionToGene)
			rec.EScoreR2G = floatPtr(h.Score)
			left = append(left, rec)
		}
	}
	left = dedupe(left)

	g2rByGene := make(map[string][]ReactionHit)
	var g2rOrder []string
	seenG2R := make(map[string]struct{})
	for _, h := range g2r {
		gene := h.Gene(GeneToReaction)
		k := gene + "\x00" + optInt(h.ReactionID) + "\x00" + optFloat(&h.Score)
		if _, dup := seenG2R[k]; dup {
			continue
		}
		seenG2R[k] = struct{}{}
		if _, ok := g2rByGene[gene]; !ok {
			g2rOrder = append(g2rOrder, gene)
		}
		g2rByGene[gene] = append(g2rByGene[gene], h)
	}

	matched := make(map[string]bool)
	var out []Record
	for _, rec := range left {
		hits := g2rByGene[rec.GeneR2G]
		if rec.GeneR2G == "" || len(hits) == 0 {
			out = append(out, rec)
			continue
		}
		matched[rec.GeneR2G] = true
		for _, h := range hits {
			joined := rec
			joined.GeneG2R = h.Query
			joined.ReactionIDG2R = h.ReactionID
			joined.EScoreG2R = floatPtr(h.Score)
			out = append(out, joined)
		}
	}
	for _, gene := range g2rOrder {
		if matched[gene] {
			continue
		}
		for _, h := range g2rByGene[gene] {
			out = append(out, Record{
				GeneG2R:       h.Query,
				ReactionIDG2R: h.ReactionID,
				EScoreG2R:     floatPtr(h.Score),
			})
		}
	}
	return dedupe(out)
}

func dedupe(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, r := range records {
		k := r.mergeKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// LinksWithScores pairs every connector link with each distinct score its
// compound has in the input, so a compound observed several times yields
// one evidence row per score.  Compounds absent from inputs score 1.
func LinksWithScores(links []reaction.Link, inputs []CompoundInput) []CompoundLink {
	scores := make(map[string][]float64)
	for _, in := range inputs {
		dup := false
		for _, s := range scores[in.OriginalCompound] {
			if s == in.CompoundScore {
				dup = true
				break
			}
		}
		if !dup {
			scores[in.OriginalCompound] = append(scores[in.OriginalCompound], in.CompoundScore)
		}
	}

	out := make([]CompoundLink, 0, len(links))
	for _, l := range links {
		ss, ok := scores[l.OriginalCompound]
		if !ok {
			ss = []float64{1}
		}
		for _, s := range ss {
			out = append(out, CompoundLink{Link: l, CompoundScore: s})
		}
	}
	return out
}
