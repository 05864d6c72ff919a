package scoring

import (
	"fmt"
	"strings"

	"github.com/TimothyStephens/magi/internal/domain/reaction"
)

// CompoundLink is a compound-to-reaction link carrying the score of the
// compound evidence that produced it.
type CompoundLink struct {
	reaction.Link
	CompoundScore float64
}

// Record is one merged (compound, reaction, gene) combination.  Compound
// fields are unset on rows contributed only by the gene-to-reaction search.
type Record struct {
	// Compound evidence.
	OriginalCompound string
	HasCompound      bool
	CompoundScore    float64
	Level            int
	Neighbor         string
	Note             reaction.Note

	// Reaction-to-gene side: the compound's reaction and the gene a
	// reference sequence of that reaction hit.
	ReactionIDR2G *int
	GeneR2G       string
	EScoreR2G     *float64

	// Gene-to-reaction side.
	GeneG2R       string
	ReactionIDG2R *int
	EScoreG2R     *float64

	ReciprocalScore    float64
	HomologyScore      float64
	ReactionConnection float64
	// MAGIScore is nil for rows without compound evidence.
	MAGIScore *float64
}

// GeneID is the gene of the row: the gene-to-reaction query when present,
// otherwise the reaction-to-gene subject.
func (r Record) GeneID() string {
	if r.GeneG2R != "" {
		return r.GeneG2R
	}
	return r.GeneR2G
}

func floatPtr(v float64) *float64 { return &v }

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}

func optFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprint(*p)
}

// mergeKey identifies a merged row over every column the merge produces.
func (r Record) mergeKey() string {
	return strings.Join([]string{
		r.OriginalCompound, fmt.Sprint(r.HasCompound), fmt.Sprint(r.CompoundScore),
		fmt.Sprint(r.Level), r.Neighbor, string(r.Note),
		optInt(r.ReactionIDR2G), r.GeneR2G, optFloat(r.EScoreR2G),
		r.GeneG2R, optInt(r.ReactionIDG2R), optFloat(r.EScoreG2R),
	}, "\x00")
}
