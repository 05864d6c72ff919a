package scoring

import (
	"fmt"
	"math"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// Reciprocal agreement values.  No other reciprocal score is legal.
const (
	ReciprocalAgree        = 2.0
	ReciprocalClose        = 1.0
	ReciprocalIncomparable = 0.1
	ReciprocalDisagree     = 0.01
)

// HomologyFloor is the homology score of rows missing a search direction.
const HomologyFloor = 1.0

// ConnectionOffset keeps the reaction connection strictly positive.
const ConnectionOffset = 0.01

// ReciprocalScore grades agreement between the reaction reached by the
// reaction-to-gene search (forward) and the gene-to-reaction search
// (reverse).  The rules apply in order and the missing-score rule overrides
// whatever the earlier rules decided.
func ReciprocalScore(forwardID, reverseID *int, forwardScore, reverseScore *float64, closeness float64) float64 {
	var score float64
	switch {
	case forwardID != nil && reverseID != nil && *forwardID == *reverseID:
		score = ReciprocalAgree
	case isClose(forwardScore, reverseScore, closeness):
		score = ReciprocalClose
	default:
		score = ReciprocalDisagree
	}
	if forwardScore == nil || reverseScore == nil {
		score = ReciprocalIncomparable
	}
	return score
}

func isClose(a, b *float64, closeness float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Min(*a, *b) >= closeness*math.Max(*a, *b)
}

// HomologyScore is (forward + reverse) - |forward - reverse|, or
// HomologyFloor when either score is missing.
func HomologyScore(forwardScore, reverseScore *float64) float64 {
	if forwardScore == nil || reverseScore == nil {
		return HomologyFloor
	}
	f, r := *forwardScore, *reverseScore
	return (f + r) - math.Abs(f-r)
}

// ReactionConnection counts the search directions that reached a reaction.
func ReactionConnection(forwardID, reverseID *int) float64 {
	n := 0.0
	if forwardID != nil {
		n++
	}
	if reverseID != nil {
		n++
	}
	return n + ConnectionOffset
}

// GeometricMean returns exp(Σ w·ln(s) / Σ w).  Empty weights weigh every
// score 1.  Scores must be strictly positive and weights must match scores
// one to one; anything else is an error, never coerced.
func GeometricMean(scores, weights []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New(errors.ErrCodeShapeMismatch, "no scores to combine")
	}
	if len(weights) == 0 {
		weights = make([]float64, len(scores))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(scores) {
		return 0, errors.New(errors.ErrCodeShapeMismatch, "weights do not match scores").
			WithDetail(fmt.Sprintf("weights=%d scores=%d", len(weights), len(scores)))
	}

	var num, den float64
	for i, s := range scores {
		if !(s > 0) || math.IsInf(s, 0) {
			return 0, errors.New(errors.ErrCodeNumericPrecondition, "geometric mean needs strictly positive scores").
				WithDetail(fmt.Sprintf("index=%d score=%v", i, s))
		}
		w := weights[i]
		if w < 0 || math.IsNaN(w) {
			return 0, errors.New(errors.ErrCodeNumericPrecondition, "weights must be non-negative").
				WithDetail(fmt.Sprintf("index=%d weight=%v", i, w))
		}
		num += w * math.Log(s)
		den += w
	}
	if den == 0 {
		return 0, errors.New(errors.ErrCodeNumericPrecondition, "weights sum to zero")
	}
	return math.Exp(num / den), nil
}

// MAGIScore combines the four evidence scores and applies the chemical
// network penalty for the compound's search level.
func MAGIScore(compound, reciprocal, homology, connection float64, weights []float64, penalty float64, level int) (float64, error) {
	mean, err := GeometricMean([]float64{compound, reciprocal, homology, connection}, weights)
	if err != nil {
		return 0, err
	}
	return mean / math.Pow(penalty, float64(level)), nil
}
