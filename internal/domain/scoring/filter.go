package scoring

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// FilterCriteria selects high-confidence rows of a result table.
type FilterCriteria struct {
	// CompoundScore must match exactly.
	CompoundScore float64
	// EScoreR2G and EScoreG2R are exclusive lower bounds.
	EScoreR2G float64
	EScoreG2R float64
	// ReciprocalScore must match exactly.
	ReciprocalScore float64
}

// DefaultFilterCriteria keeps direct compound evidence with strong,
// agreeing searches in both directions.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{CompoundScore: 1, EScoreR2G: 5, EScoreG2R: 5, ReciprocalScore: 2}
}

var filterColumns = []string{"compound_score", "e_score_r2g", "e_score_g2r", "reciprocal_score"}

// FilterStats reports how many rows a filter read and kept.
type FilterStats struct {
	Read int
	Kept int
}

// Filter copies the rows of a comma-separated result table in r that meet
// c to w as tab-separated text, header included.  Rows with an empty or
// non-numeric value in a filtered column are dropped.
func Filter(r io.Reader, w io.Writer, c FilterCriteria) (FilterStats, error) {
	var stats FilterStats
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return stats, errors.Wrap(err, errors.ErrCodeMalformedRow, "failed to read result header")
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	cols := make([]int, len(filterColumns))
	for i, name := range filterColumns {
		p, ok := pos[name]
		if !ok {
			return stats, errors.New(errors.ErrCodeMissingColumn, "result table lacks a filter column").
				WithDetail(fmt.Sprintf("column=%s", name))
		}
		cols[i] = p
	}

	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	if err := tw.Write(header); err != nil {
		return stats, err
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.New(errors.ErrCodeMalformedRow, "failed to read result row").
				WithDetail(fmt.Sprintf("row=%d", stats.Read+2)).
				WithCause(err)
		}
		stats.Read++
		if !c.keep(rec, cols) {
			continue
		}
		if err := tw.Write(rec); err != nil {
			return stats, err
		}
		stats.Kept++
	}
	tw.Flush()
	return stats, tw.Error()
}

func (c FilterCriteria) keep(rec []string, cols []int) bool {
	vals := make([]float64, len(cols))
	for i, p := range cols {
		v, err := strconv.ParseFloat(rec[p], 64)
		if err != nil {
			return false
		}
		vals[i] = v
	}
	return vals[0] == c.CompoundScore &&
		vals[1] > c.EScoreR2G &&
		vals[2] > c.EScoreG2R &&
		vals[3] == c.ReciprocalScore
}
