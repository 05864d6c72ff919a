package reference

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// Table is a header-addressed, string-valued tabular file.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Separator returns the field separator implied by a (possibly compressed)
// file name: ',' for .csv and tab for .tsv, .tab and .txt.
func Separator(path string) (rune, error) {
	switch strings.ToLower(filepath.Ext(stripCompression(path))) {
	case ".csv":
		return ',', nil
	case ".tsv", ".tab", ".txt":
		return '\t', nil
	default:
		return 0, errors.InvalidParam("cannot infer table format").
			WithDetail(fmt.Sprintf("file=%s expected=.csv|.tsv|.tab|.txt", path))
	}
}

// ReadTable loads a whole table from path.
func ReadTable(path string) (*Table, error) {
	sep, err := Separator(path)
	if err != nil {
		return nil, err
	}
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseTable(path, rc, sep)
}

// ParseTable reads a table with a header row.  Rows that are entirely empty
// are dropped; short rows are padded.
func ParseTable(name string, r io.Reader, sep rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeMalformedRow, "table is empty").WithDetail("table=" + name)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeMalformedRow, "failed to read table header").
			WithDetail("table=" + name).WithCause(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Name: name, Header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedRow, "failed to read table row").
				WithDetail(fmt.Sprintf("table=%s row=%d", name, len(t.Rows)+2)).WithCause(err)
		}
		if blank(rec) {
			continue
		}
		if len(rec) < len(header) {
			rec = append(rec, make([]string, len(header)-len(rec))...)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Has reports whether the table has a column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Column returns the index of a required column.
func (t *Table) Column(column string) (int, error) {
	i, ok := t.index[column]
	if !ok {
		return 0, errors.New(errors.ErrCodeMissingColumn, "required column is missing").
			WithDetail(fmt.Sprintf("table=%s column=%s", t.Name, column))
	}
	return i, nil
}

// Resolve finds the single column present among candidates.  None or more
// than one present is an error naming the candidates.
func (t *Table) Resolve(candidates ...string) (string, int, error) {
	var found []string
	for _, c := range candidates {
		if t.Has(c) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return "", 0, errors.New(errors.ErrCodeMissingColumn, "no candidate column found").
			WithDetail(fmt.Sprintf("table=%s candidates=%s", t.Name, strings.Join(candidates, ",")))
	case 1:
		return found[0], t.index[found[0]], nil
	default:
		return "", 0, errors.New(errors.ErrCodeAmbiguousColumn, "more than one candidate column found").
			WithDetail(fmt.Sprintf("table=%s columns=%s", t.Name, strings.Join(found, ",")))
	}
}
