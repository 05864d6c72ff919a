package compound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable() *Table {
	return NewTable([]Compound{
		{InChIKey: "WQZGKKKJIJFFOK-GASJEMHNSA-N", InChI: "InChI=1S/glucose", MonoisotopicMass: 180.0634},
		{InChIKey: "WQZGKKKJIJFFOK-DVKNGEFBSA-N", InChI: "InChI=1S/alpha-glucose", MonoisotopicMass: 180.0634},
		{InChIKey: "BJHIKXHVCXFQLS-UYFOZJQFSA-N", InChI: "InChI=1S/fructose", MonoisotopicMass: 180.0634},
	})
}

func TestTable_Lookup(t *testing.T) {
	table := newTestTable()

	c, ok := table.Lookup("WQZGKKKJIJFFOK-DVKNGEFBSA-N")
	require.True(t, ok)
	assert.Equal(t, "InChI=1S/alpha-glucose", c.InChI)

	c, ok = table.Lookup("WQZGKKKJIJFFOK")
	require.True(t, ok)
	assert.Equal(t, "InChI=1S/glucose", c.InChI, "first containing row wins")

	_, ok = table.Lookup("ZZZZZZZZZZZZZZ")
	assert.False(t, ok)
	_, ok = table.Lookup("")
	assert.False(t, ok)
	assert.Equal(t, 3, table.Len())
}

func TestTable_MassOf(t *testing.T) {
	found, missing := newTestTable().MassOf([]string{"BJHIKXHVCXFQLS-UYFOZJQFSA-N", "NOPE"})
	require.Len(t, found, 1)
	assert.Equal(t, 180.0634, found[0].MonoisotopicMass)
	assert.Equal(t, []string{"NOPE"}, missing)
}
