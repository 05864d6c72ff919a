package scoring

import (
	"fmt"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Params are the integration scoring knobs.
type Params struct {
	// Closeness is the reciprocal closeness threshold in [0, 1].
	Closeness float64
	// Penalty is the chemical network penalty base, > 0.
	Penalty float64
	// Weights weigh compound, reciprocal, homology and connection scores;
	// empty means unweighted.
	Weights []float64
}

// Scorer scores merged records.
type Scorer struct {
	params Params
	logger logging.Logger
}

// NewScorer returns a Scorer.
func NewScorer(params Params, logger logging.Logger) *Scorer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scorer{params: params, logger: logger.Named("scoring")}
}

// Score fills the reciprocal, homology, connection and MAGI scores of every
// record in place.  The first numeric precondition failure aborts scoring
// and names the offending row.
func (s *Scorer) Score(records []Record) error {
	if s.params.Penalty <= 0 {
		return errors.New(errors.ErrCodeNumericPrecondition, "chemnet penalty must be positive").
			WithDetail(fmt.Sprintf("penalty=%v", s.params.Penalty))
	}
	scored := 0
	for i := range records {
		r := &records[i]
		r.ReciprocalScore = ReciprocalScore(r.ReactionIDR2G, r.ReactionIDG2R, r.EScoreR2G, r.EScoreG2R, s.params.Closeness)
		r.HomologyScore = HomologyScore(r.EScoreR2G, r.EScoreG2R)
		r.ReactionConnection = ReactionConnection(r.ReactionIDR2G, r.ReactionIDG2R)
		r.MAGIScore = nil
		if !r.HasCompound {
			continue
		}
		v, err := MAGIScore(r.CompoundScore, r.ReciprocalScore, r.HomologyScore, r.ReactionConnection,
			s.params.Weights, s.params.Penalty, r.Level)
		if err != nil {
			return errors.New(errors.GetCode(err), "failed to score record").
				WithDetail(fmt.Sprintf("compound=%s gene=%s", r.OriginalCompound, r.GeneID())).
				WithCause(err)
		}
		r.MAGIScore = floatPtr(v)
		scored++
	}
	s.logger.Info("records scored", logging.Int("records", len(records)), logging.Int("with_magi_score", scored))
	return nil
}
