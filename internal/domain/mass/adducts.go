package mass

import (
	"fmt"
	"strings"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// Adduct is an ionisation form of a molecule.
type Adduct struct {
	Name string
	// Mass is added to the neutral mass to give the observed m/z.
	Mass      float64
	Charge    int
	Molecules int
	Common    bool
}

// Polarity of the instrument.
const (
	Positive = "pos"
	Negative = "neg"
)

// ChargedMolecule is the radical cation every positive-mode search includes.
var ChargedMolecule = Adduct{Name: "[M]+", Mass: 0, Charge: 1, Molecules: 1, Common: true}

// Adducts lists the known adducts.
var Adducts = []Adduct{
	{Name: "[2M+H]", Mass: 1.0073, Charge: 1, Molecules: 2, Common: true},
	{Name: "[2M-H]", Mass: -1.0073, Charge: -1, Molecules: 2, Common: true},
	{Name: "[M+2H]", Mass: 2.0146, Charge: 2, Molecules: 1, Common: true},
	{Name: "[M+2Na]", Mass: 45.9784, Charge: 2, Molecules: 1},
	{Name: "[M+Cl]", Mass: 34.9694, Charge: -1, Molecules: 1, Common: true},
	{Name: "[M+H-H2O]", Mass: -17.0033, Charge: 1, Molecules: 1, Common: true},
	{Name: "[M+H]", Mass: 1.0073, Charge: 1, Molecules: 1, Common: true},
	{Name: "[M+K]", Mass: 38.963158, Charge: 1, Molecules: 1},
	{Name: "[M+NH4]", Mass: 18.0338, Charge: 1, Molecules: 1, Common: true},
	{Name: "[M+Na]", Mass: 22.9892, Charge: 1, Molecules: 1, Common: true},
	{Name: "[M+acetate]", Mass: 59.0139, Charge: -1, Molecules: 1},
	{Name: "[M-2H]", Mass: -2.014552904, Charge: -2, Molecules: 1, Common: true},
	{Name: "[M-H+2Na]", Mass: 44.9711, Charge: 1, Molecules: 1},
	{Name: "[M-H+Cl]", Mass: 33.9621, Charge: -2, Molecules: 1},
	{Name: "[M-H+Na]", Mass: 21.98194425, Charge: 0, Molecules: 1},
	{Name: "[M-H]", Mass: -1.0073, Charge: -1, Molecules: 1, Common: true},
	{Name: "[M-e]", Mass: -0.0005, Charge: 1, Molecules: 1},
	{Name: "[M]", Mass: 0, Charge: 0, Molecules: 1, Common: true},
}

// SelectAdducts returns the adducts named in names, or, when names is
// empty, the common single-molecule adducts of the polarity's unit charge.
// Positive mode adds ChargedMolecule.
func SelectAdducts(polarity string, names []string) ([]Adduct, error) {
	if len(names) > 0 {
		out := make([]Adduct, 0, len(names))
		for _, n := range names {
			a, ok := adductByName(n)
			if !ok {
				return nil, errors.InvalidParam("unknown adduct").WithDetail(fmt.Sprintf("adduct=%s", n))
			}
			out = append(out, a)
		}
		return out, nil
	}

	var charge int
	switch strings.ToLower(polarity) {
	case Positive, "positive", "":
		charge = 1
	case Negative, "negative":
		charge = -1
	default:
		return nil, errors.InvalidParam("unknown polarity").WithDetail(fmt.Sprintf("polarity=%s", polarity))
	}
	var out []Adduct
	for _, a := range Adducts {
		if a.Charge == charge && a.Molecules == 1 && a.Common {
			out = append(out, a)
		}
	}
	if charge == 1 {
		out = append(out, ChargedMolecule)
	}
	return out, nil
}

func adductByName(name string) (Adduct, bool) {
	if name == ChargedMolecule.Name {
		return ChargedMolecule, true
	}
	for _, a := range Adducts {
		if a.Name == name {
			return a, true
		}
	}
	return Adduct{}, false
}

// MZMatch is a mass match reached through an adduct.
type MZMatch struct {
	MZ     float64
	Adduct string
	Match
}

// SearchMZ treats every observed m/z as each adduct in turn and searches
// the neutral mass m/z - adduct mass.  Only found compounds are returned.
func (s *Searcher) SearchMZ(mzs []float64, adducts []Adduct, ppm float64) []MZMatch {
	var out []MZMatch
	for _, mz := range mzs {
		for _, a := range adducts {
			neutral := mz - a.Mass
			if neutral <= 0 {
				continue
			}
			for _, m := range s.searchOne(neutral, ppm) {
				if !m.Found() {
					continue
				}
				out = append(out, MZMatch{MZ: mz, Adduct: a.Name, Match: m})
			}
		}
	}
	return out
}
