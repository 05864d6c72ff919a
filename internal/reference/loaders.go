package reference

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Reaction table columns.  The id column is optional; row position is used
// when it is absent.
var (
	reactionIDColumns       = []string{"reaction_id", "id"}
	reactionCompoundColumns = []string{"allcpd_ikeys", "compounds"}
)

const (
	refseqColumn     = "refseq_id"
	ecColumn         = "ec"
	databaseIDColumn = "database_id"
)

// LoadReactions reads the reaction table.  Participants are separated by
// "///"; reference sequences by "|".
func LoadReactions(path string) (*reaction.Index, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	return ReactionsFromTable(t)
}

// ReactionsFromTable converts a parsed reaction table.
func ReactionsFromTable(t *Table) (*reaction.Index, error) {
	_, cpdCol, err := t.Resolve(reactionCompoundColumns...)
	if err != nil {
		return nil, err
	}
	idCol := -1
	if _, c, err := t.Resolve(reactionIDColumns...); err == nil {
		idCol = c
	} else if errors.IsCode(err, errors.ErrCodeAmbiguousColumn) {
		return nil, err
	}
	refCol := optionalColumn(t, refseqColumn)
	ecCol := optionalColumn(t, ecColumn, "ECs")
	dbCol := optionalColumn(t, databaseIDColumn)

	rows := make([]reaction.Reaction, 0, len(t.Rows))
	for i, rec := range t.Rows {
		id := i
		if idCol >= 0 {
			v, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
			if err != nil {
				return nil, errors.New(errors.ErrCodeMalformedRow, "reaction id is not an integer").
					WithDetail(fmt.Sprintf("table=%s row=%d value=%q", t.Name, i+2, rec[idCol]))
			}
			id = v
		}
		r := reaction.Reaction{
			ID:        id,
			Compounds: chemnet.SplitMembers(rec[cpdCol]),
		}
		if refCol >= 0 {
			r.Refseqs = reaction.SplitRefseqs(rec[refCol])
		}
		if ecCol >= 0 {
			r.EC = normalizeEC(rec[ecCol])
		}
		if dbCol >= 0 {
			r.DatabaseID = strings.TrimSpace(rec[dbCol])
		}
		rows = append(rows, r)
	}
	return reaction.NewIndex(rows), nil
}

func normalizeEC(field string) string {
	if strings.Contains(field, "EC:") {
		return reaction.ParseEC(field)
	}
	return strings.TrimSpace(field)
}

func optionalColumn(t *Table, names ...string) int {
	for _, n := range names {
		if i, err := t.Column(n); err == nil {
			return i
		}
	}
	return -1
}

// Compound table columns.
const (
	inchiKeyColumn = "inchi_key"
	inchiColumn    = "inchi"
	massColumn     = "mono_isotopic_molecular_weight"
)

// LoadCompounds reads the compound table.  Empty masses are kept as zero.
func LoadCompounds(path string) (*compound.Table, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	return CompoundsFromTable(t)
}

// CompoundsFromTable converts a parsed compound table.
func CompoundsFromTable(t *Table) (*compound.Table, error) {
	keyCol, err := t.Column(inchiKeyColumn)
	if err != nil {
		return nil, err
	}
	inchiCol := optionalColumn(t, inchiColumn)
	massCol := optionalColumn(t, massColumn)

	rows := make([]compound.Compound, 0, len(t.Rows))
	for i, rec := range t.Rows {
		c := compound.Compound{InChIKey: strings.TrimSpace(rec[keyCol])}
		if c.InChIKey == "" {
			continue
		}
		if inchiCol >= 0 {
			c.InChI = strings.TrimSpace(rec[inchiCol])
		}
		if massCol >= 0 {
			if v := strings.TrimSpace(rec[massCol]); v != "" {
				m, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, errors.New(errors.ErrCodeMalformedRow, "compound mass is not a number").
						WithDetail(fmt.Sprintf("table=%s row=%d value=%q", t.Name, i+2, v))
				}
				c.MonoisotopicMass = m
			}
		}
		rows = append(rows, c)
	}
	return compound.NewTable(rows), nil
}

// LoadSequences reads protein sequences from a FASTA file or from a table
// with refseq_id and sequence columns.  Rows with an empty sequence are
// skipped.
func LoadSequences(path string) (*homology.SequenceSet, error) {
	switch strings.ToLower(filepath.Ext(stripCompression(path))) {
	case ".fa", ".faa", ".fasta", ".fas":
		rc, err := Open(path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return homology.ParseFASTA(rc)
	}

	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	idCol, err := t.Column(refseqColumn)
	if err != nil {
		return nil, err
	}
	seqCol, err := t.Column("sequence")
	if err != nil {
		return nil, err
	}
	set := homology.NewSequenceSet()
	for _, rec := range t.Rows {
		id, seq := strings.TrimSpace(rec[idCol]), strings.TrimSpace(rec[seqCol])
		if id == "" || seq == "" {
			continue
		}
		if err := set.Add(id, seq); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// FileNetworkSource reads the chemical network from a group table
// (group_id, members) and an edge table (source, target, weight).
type FileNetworkSource struct {
	Groups string
	Edges  string
}

// Load implements chemnet.Source.
func (s FileNetworkSource) Load(_ context.Context) (*chemnet.Network, error) {
	gt, err := ReadTable(s.Groups)
	if err != nil {
		return nil, err
	}
	groups, err := GroupsFromTable(gt)
	if err != nil {
		return nil, err
	}

	var edges []chemnet.Edge
	if s.Edges != "" {
		et, err := ReadTable(s.Edges)
		if err != nil {
			return nil, err
		}
		if edges, err = EdgesFromTable(et); err != nil {
			return nil, err
		}
	}
	return chemnet.NewNetwork(groups, edges)
}

// GroupsFromTable converts a parsed group table.
func GroupsFromTable(t *Table) ([]chemnet.Group, error) {
	idCol, err := t.Column("group_id")
	if err != nil {
		return nil, err
	}
	memCol, err := t.Column("members")
	if err != nil {
		return nil, err
	}
	groups := make([]chemnet.Group, 0, len(t.Rows))
	for i, rec := range t.Rows {
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedRow, "group id is not an integer").
				WithDetail(fmt.Sprintf("table=%s row=%d value=%q", t.Name, i+2, rec[idCol]))
		}
		groups = append(groups, chemnet.Group{ID: id, Members: chemnet.SplitMembers(rec[memCol])})
	}
	return groups, nil
}

// EdgesFromTable converts a parsed edge table.  A missing weight column
// weighs every edge 1.
func EdgesFromTable(t *Table) ([]chemnet.Edge, error) {
	srcCol, err := t.Column("source")
	if err != nil {
		return nil, err
	}
	dstCol, err := t.Column("target")
	if err != nil {
		return nil, err
	}
	wCol := optionalColumn(t, "weight")

	edges := make([]chemnet.Edge, 0, len(t.Rows))
	for i, rec := range t.Rows {
		src, err1 := strconv.Atoi(strings.TrimSpace(rec[srcCol]))
		dst, err2 := strconv.Atoi(strings.TrimSpace(rec[dstCol]))
		if err1 != nil || err2 != nil {
			return nil, errors.New(errors.ErrCodeMalformedRow, "edge endpoint is not an integer").
				WithDetail(fmt.Sprintf("table=%s row=%d", t.Name, i+2))
		}
		e := chemnet.Edge{Source: src, Target: dst, Weight: 1}
		if wCol >= 0 && strings.TrimSpace(rec[wCol]) != "" {
			w, err := strconv.ParseFloat(strings.TrimSpace(rec[wCol]), 64)
			if err != nil {
				return nil, errors.New(errors.ErrCodeMalformedRow, "edge weight is not a number").
					WithDetail(fmt.Sprintf("table=%s row=%d", t.Name, i+2))
			}
			e.Weight = w
		}
		edges = append(edges, e)
	}
	return edges, nil
}
