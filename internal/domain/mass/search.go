// Package mass finds reference compounds matching observed masses within a
// ppm tolerance, directly or through ionisation adducts.
package mass

import (
	"math"
	"sort"

	"github.com/TimothyStephens/magi/internal/domain/compound"
)

// PPMError returns the absolute error of an observed mass against a
// theoretical mass in parts per million.
func PPMError(observed, theoretical float64) float64 {
	return math.Abs(observed-theoretical) / theoretical * 1e6
}

// PPMTolerance returns the absolute mass error allowed by ppm at mass.
func PPMTolerance(mass, ppm float64) float64 {
	return ppm / 1e6 * mass
}

// PPMWindow returns the bounds of the ppm window around mass.
func PPMWindow(mass, ppm float64) (lower, upper float64) {
	err := PPMTolerance(mass, ppm)
	return mass - err, mass + err
}

// Match is one (observed mass, reference compound) pair.  A mass without
// matches yields one Match with nil target fields.
type Match struct {
	QueryMass        float64
	TargetMass       *float64
	PPM              *float64
	OriginalCompound string
	// CompoundScore is ppm tolerance + 1 - ppm error.
	CompoundScore *float64
}

// Found reports whether the match names a reference compound.
func (m Match) Found() bool { return m.TargetMass != nil }

type massEntry struct {
	mass  float64
	row   int
	inchi string
}

// Searcher answers accurate-mass queries against a compound table.
type Searcher struct {
	entries []massEntry
}

// NewSearcher indexes the compounds of table that have a positive mass.
func NewSearcher(table *compound.Table) *Searcher {
	rows := table.Rows()
	entries := make([]massEntry, 0, len(rows))
	for i, c := range rows {
		if c.MonoisotopicMass > 0 {
			entries = append(entries, massEntry{mass: c.MonoisotopicMass, row: i, inchi: c.InChIKey})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].mass < entries[j].mass })
	return &Searcher{entries: entries}
}

// Search returns, per observed mass and in input order, every compound
// whose mass lies within ppm of it, in table order.
func (s *Searcher) Search(masses []float64, ppm float64) []Match {
	var out []Match
	for _, m := range masses {
		out = append(out, s.searchOne(m, ppm)...)
	}
	return out
}

func (s *Searcher) searchOne(m, ppm float64) []Match {
	lower, upper := PPMWindow(m, ppm)
	start := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].mass >= lower })

	var hits []massEntry
	for i := start; i < len(s.entries) && s.entries[i].mass <= upper; i++ {
		hits = append(hits, s.entries[i])
	}
	if len(hits) == 0 {
		return []Match{{QueryMass: m}}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].row < hits[j].row })

	out := make([]Match, len(hits))
	for i, h := range hits {
		target := h.mass
		errPPM := PPMError(m, target)
		score := ppm + 1 - errPPM
		out[i] = Match{
			QueryMass:        m,
			TargetMass:       &target,
			PPM:              &errPPM,
			OriginalCompound: h.inchi,
			CompoundScore:    &score,
		}
	}
	return out
}
