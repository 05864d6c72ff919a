package reference

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TimothyStephens/magi/internal/domain/scoring"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Candidate column names of a compound input table, as written by MAGI
// itself and by Pactolus.
var (
	CompoundColumns = []string{"original_compound", "inchi_key_y", "inchi_key"}
	ScoreColumns    = []string{"compound_score", "score"}
)

// LoadCompoundInput reads the compound list a run starts from.
func LoadCompoundInput(path string) ([]scoring.CompoundInput, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	return CompoundInputFromTable(t)
}

// CompoundInputFromTable picks the single compound column and the optional
// score column of t.  Without a score column every compound scores 1.  Rows
// with an empty compound are skipped.
func CompoundInputFromTable(t *Table) ([]scoring.CompoundInput, error) {
	_, cpdCol, err := t.Resolve(CompoundColumns...)
	if err != nil {
		return nil, err
	}
	scoreCol := -1
	if _, c, err := t.Resolve(ScoreColumns...); err == nil {
		scoreCol = c
	} else if errors.IsCode(err, errors.ErrCodeAmbiguousColumn) {
		return nil, err
	}

	out := make([]scoring.CompoundInput, 0, len(t.Rows))
	for i, rec := range t.Rows {
		key := strings.TrimSpace(rec[cpdCol])
		if key == "" {
			continue
		}
		in := scoring.CompoundInput{OriginalCompound: key, CompoundScore: 1}
		if scoreCol >= 0 {
			v := strings.TrimSpace(rec[scoreCol])
			s, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errors.New(errors.ErrCodeMalformedRow, "compound score is not a number").
					WithDetail(fmt.Sprintf("table=%s row=%d value=%q", t.Name, i+2, v))
			}
			in.CompoundScore = s
		}
		out = append(out, in)
	}
	return out, nil
}
