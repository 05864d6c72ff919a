package scoring

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/TimothyStephens/magi/internal/domain/reaction"
)

// CompoundInput is one row of the scrubbed compound input: the compounds a
// run started from, with their evidence score.
type CompoundInput struct {
	OriginalCompound string
	CompoundScore    float64
}

// Columns is the column order of every result table.
var Columns = []string{
	"MAGI_score", "gene_id", "original_compound", "neighbor", "note",
	"compound_score", "level", "homology_score", "reciprocal_score",
	"reaction_connection", "e_score_r2g", "database_id_r2g", "e_score_g2r",
	"database_id_g2r",
}

// Result is a final, formatted result row.
type Result struct {
	Record
	DatabaseIDR2G string
	DatabaseIDG2R string
	// scored is false for compound view placeholders, which carry only the
	// compound columns.
	scored bool
}

// Format sorts scored records by compound and descending MAGI score, drops
// rows repeating the key evidence of a better row and attaches the database
// ids of both reactions.
func Format(records []Record, idx *reaction.Index) []Result {
	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.HasCompound != b.HasCompound {
			return a.HasCompound
		}
		if a.OriginalCompound != b.OriginalCompound {
			return a.OriginalCompound < b.OriginalCompound
		}
		return magiGreater(a.MAGIScore, b.MAGIScore)
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]Result, 0, len(sorted))
	for _, r := range sorted {
		k := formatKey(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		res := Result{Record: r, scored: true}
		if r.ReactionIDR2G != nil {
			res.DatabaseIDR2G = idx.DatabaseID(*r.ReactionIDR2G)
		}
		if r.ReactionIDG2R != nil {
			res.DatabaseIDG2R = idx.DatabaseID(*r.ReactionIDG2R)
		}
		out = append(out, res)
	}
	return out
}

func formatKey(r Record) string {
	return r.OriginalCompound + "\x00" + strconv.FormatBool(r.HasCompound) + "\x00" +
		strconv.Itoa(r.Level) + "\x00" + r.Neighbor + "\x00" +
		formatFloat(r.CompoundScore) + "\x00" + formatFloat(r.ReciprocalScore) + "\x00" +
		r.GeneID() + "\x00" + optInt(r.ReactionIDR2G) + "\x00" + optInt(r.ReactionIDG2R)
}

// magiGreater orders MAGI scores descending with missing scores last.
func magiGreater(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a > *b
	}
}

// CompoundView keeps the best row per (compound, compound score) and right
// joins it to the input compounds, so every input compound appears once per
// input row even when nothing was found for it.
func CompoundView(results []Result, inputs []CompoundInput) []Result {
	withCompound := make([]Result, 0, len(results))
	for _, r := range results {
		if r.HasCompound {
			withCompound = append(withCompound, r)
		}
	}
	sort.SliceStable(withCompound, func(i, j int) bool {
		return magiGreater(withCompound[i].MAGIScore, withCompound[j].MAGIScore)
	})

	best := make(map[CompoundInput]Result, len(withCompound))
	for _, r := range withCompound {
		k := CompoundInput{r.OriginalCompound, r.CompoundScore}
		if _, ok := best[k]; !ok {
			best[k] = r
		}
	}

	out := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		if r, ok := best[in]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, Result{Record: Record{
			OriginalCompound: in.OriginalCompound,
			HasCompound:      true,
			CompoundScore:    in.CompoundScore,
		}})
	}
	return out
}

// GeneView keeps the best row per (gene, gene-to-reaction database id),
// ranking by MAGI score then gene-to-reaction e score.
func GeneView(results []Result) []Result {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !equalOpt(a.MAGIScore, b.MAGIScore) {
			return magiGreater(a.MAGIScore, b.MAGIScore)
		}
		return magiGreater(a.EScoreG2R, b.EScoreG2R)
	})

	type key struct{ gene, db string }
	seen := make(map[key]struct{}, len(sorted))
	out := sorted[:0]
	for _, r := range sorted {
		k := key{r.GeneID(), r.DatabaseIDG2R}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func equalOpt(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return formatFloat(*p)
}

// Row renders the result in Columns order.  Missing values are empty.
func (r Result) Row() []string {
	row := make([]string, len(Columns))
	row[0] = formatOptFloat(r.MAGIScore)
	row[1] = r.GeneID()
	if r.HasCompound {
		row[2] = r.OriginalCompound
		row[3] = r.Neighbor
		row[4] = string(r.Note)
		row[5] = formatFloat(r.CompoundScore)
		if r.scored {
			row[6] = strconv.Itoa(r.Level)
		}
	}
	if r.scored {
		row[7] = formatFloat(r.HomologyScore)
		row[8] = formatFloat(r.ReciprocalScore)
		row[9] = formatFloat(r.ReactionConnection)
	}
	row[10] = formatOptFloat(r.EScoreR2G)
	row[11] = r.DatabaseIDR2G
	row[12] = formatOptFloat(r.EScoreG2R)
	row[13] = r.DatabaseIDG2R
	return row
}

// WriteCSV writes results with a header row.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(r.Row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
