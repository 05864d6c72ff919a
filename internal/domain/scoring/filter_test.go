package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimothyStephens/magi/pkg/errors"
)

func TestFilter(t *testing.T) {
	in := strings.Join([]string{
		"MAGI_score,gene_id,compound_score,e_score_r2g,e_score_g2r,reciprocal_score",
		"3.1,g1,1,50,48,2",
		"2.0,g2,1,4,48,2",
		"1.0,g3,2,50,48,2",
		"1.0,g4,1,50,48,1",
		"1.0,g5,1,,48,2",
		"1.0,g6,1,5.5,5.1,2",
	}, "\n")

	var out strings.Builder
	stats, err := Filter(strings.NewReader(in), &out, DefaultFilterCriteria())
	require.NoError(t, err)
	assert.Equal(t, FilterStats{Read: 6, Kept: 2}, stats)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "MAGI_score\tgene_id\tcompound_score\te_score_r2g\te_score_g2r\treciprocal_score", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "3.1\tg1\t"))
	assert.True(t, strings.HasPrefix(lines[2], "1.0\tg6\t"))
}

func TestFilter_MissingColumn(t *testing.T) {
	_, err := Filter(strings.NewReader("MAGI_score,compound_score\n1,1\n"), &strings.Builder{}, DefaultFilterCriteria())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMissingColumn))
	assert.Contains(t, err.Error(), "e_score_r2g")
}
