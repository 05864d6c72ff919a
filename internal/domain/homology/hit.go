// Package homology runs reciprocal protein homology searches: it partitions
// queries across parallel blastp invocations, aggregates and validates their
// output into HomologyHit rows, and filters hits for downstream linking.
package homology

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// OutputFormat is the blastp -outfmt used by every search.  Hit parsing
// depends on this field order.
const OutputFormat = "10 qacc sacc qcovs length ppos evalue bitscore"

// MaxScore is the score given to hits with an e-value of exactly zero.
const MaxScore = 200.0

// Hit is one aligned query/subject pair.
type Hit struct {
	Query     string
	Subject   string
	Coverage  float64
	Length    int
	Positives float64
	EValue    float64
	BitScore  float64
	// Score is -log10(EValue), MaxScore for EValue 0, never negative.
	Score float64
}

// ScoreFromEvalue converts an e-value to a monotonic score.
func ScoreFromEvalue(evalue float64) float64 {
	if evalue <= 0 {
		return MaxScore
	}
	s := -math.Log10(evalue)
	if math.IsInf(s, 1) {
		return MaxScore
	}
	if s < 0 {
		return 0
	}
	return s
}

// ParseHits reads blastp comma-separated output in OutputFormat.  Blank
// lines are skipped.
func ParseHits(r io.Reader) ([]Hit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 7
	reader.ReuseRecord = true

	var hits []Hit
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return hits, nil
		}
		line++
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMalformedHit, fmt.Sprintf("malformed blast output at record %d", line))
		}
		h, err := parseHit(rec)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMalformedHit, fmt.Sprintf("malformed blast output at record %d", line))
		}
		hits = append(hits, h)
	}
}

func parseHit(rec []string) (Hit, error) {
	h := Hit{Query: strings.TrimSpace(rec[0]), Subject: strings.TrimSpace(rec[1])}
	floats := []*float64{&h.Coverage, nil, &h.Positives, &h.EValue, &h.BitScore}
	for i, dst := range floats {
		field := strings.TrimSpace(rec[i+2])
		if dst == nil {
			n, err := strconv.Atoi(field)
			if err != nil {
				return Hit{}, fmt.Errorf("alignment length %q: %w", field, err)
			}
			h.Length = n
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Hit{}, fmt.Errorf("field %d %q: %w", i+3, field, err)
		}
		*dst = v
	}
	if math.IsNaN(h.EValue) || h.EValue < 0 {
		return Hit{}, fmt.Errorf("e-value %v is not a non-negative number", h.EValue)
	}
	h.Score = ScoreFromEvalue(h.EValue)
	return h, nil
}

// KeepTopHits keeps, per query, the hits scoring at least filt times the
// best score of that query.  Input order is preserved.
func KeepTopHits(hits []Hit, filt float64) []Hit {
	best := make(map[string]float64)
	for _, h := range hits {
		if cur, ok := best[h.Query]; !ok || h.Score > cur {
			best[h.Query] = h.Score
		}
	}
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= best[h.Query]*filt {
			out = append(out, h)
		}
	}
	return out
}
