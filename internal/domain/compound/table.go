package compound

import (
	"strings"
)

// Compound is one row of the reference compound table.
type Compound struct {
	InChIKey string
	// InChI is the structure handed to the structure collaborator.
	InChI string
	// MonoisotopicMass is the neutral monoisotopic mass in Da.
	MonoisotopicMass float64
}

// Table is the immutable reference compound table.  Row order is preserved;
// lookups that can match several rows return the first.
type Table struct {
	rows  []Compound
	exact map[string]int
}

// NewTable indexes rows for lookup.  The slice is copied.
func NewTable(rows []Compound) *Table {
	t := &Table{
		rows:  append([]Compound(nil), rows...),
		exact: make(map[string]int, len(rows)),
	}
	for i, c := range t.rows {
		if _, dup := t.exact[c.InChIKey]; !dup {
			t.exact[c.InChIKey] = i
		}
	}
	return t
}

// Len returns the number of compounds.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the compounds in table order.  The result must not be modified.
func (t *Table) Rows() []Compound { return t.rows }

// Lookup finds the first compound whose InChIKey contains key.  Keys may be
// one, two or three block.
func (t *Table) Lookup(key string) (Compound, bool) {
	if key == "" {
		return Compound{}, false
	}
	if i, ok := t.exact[key]; ok {
		return t.rows[i], true
	}
	for _, c := range t.rows {
		if strings.Contains(c.InChIKey, key) {
			return c, true
		}
	}
	return Compound{}, false
}

// MassOf returns the monoisotopic mass of every key found in the table, in
// input order.  Keys that are absent are reported in missing.
func (t *Table) MassOf(keys []string) (found []Compound, missing []string) {
	for _, k := range keys {
		if i, ok := t.exact[k]; ok {
			found = append(found, t.rows[i])
			continue
		}
		missing = append(missing, k)
	}
	return found, missing
}
