package homology

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// SequenceSet is an ordered, id-unique set of protein sequences.
type SequenceSet struct {
	ids  []string
	seqs map[string]string
}

// NewSequenceSet returns an empty set.
func NewSequenceSet() *SequenceSet {
	return &SequenceSet{seqs: make(map[string]string)}
}

// Add inserts a sequence.  Duplicate ids are rejected.
func (s *SequenceSet) Add(id, seq string) error {
	if _, dup := s.seqs[id]; dup {
		return errors.New(errors.ErrCodeDuplicateSequence, "duplicate sequence id").
			WithDetail(fmt.Sprintf("id=%s", id))
	}
	s.ids = append(s.ids, id)
	s.seqs[id] = seq
	return nil
}

// Get returns the sequence of id.
func (s *SequenceSet) Get(id string) (string, bool) {
	seq, ok := s.seqs[id]
	return seq, ok
}

// IDs returns the ids in insertion order.  The result must not be modified.
func (s *SequenceSet) IDs() []string { return s.ids }

// Len returns the number of sequences.
func (s *SequenceSet) Len() int { return len(s.ids) }

// ParseFASTA reads protein FASTA.  The id of a record is the first
// whitespace-separated token of its header; sequence lines are concatenated.
// Duplicate ids and inputs without any record are rejected.
func ParseFASTA(r io.Reader) (*SequenceSet, error) {
	set := NewSequenceSet()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var id string
	var seq strings.Builder
	flush := func() error {
		if id == "" {
			return nil
		}
		return set.Add(id, seq.String())
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			if err := flush(); err != nil {
				return nil, err
			}
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.New(errors.ErrCodeMalformedRow, "FASTA header without an id")
			}
			id = fields[0]
			seq.Reset()
			continue
		}
		if id == "" {
			return nil, errors.New(errors.ErrCodeMalformedRow, "FASTA sequence before the first header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to read FASTA")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, errors.New(errors.ErrCodeEmptyGenome, "FASTA input contains no sequences")
	}
	return set, nil
}

// WriteFASTA writes the sequences of ids in order and returns the ids absent
// from set, which are skipped.
func WriteFASTA(w io.Writer, ids []string, set *SequenceSet) (missing []string, err error) {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		seq, ok := set.Get(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		if _, err := fmt.Fprintf(bw, ">%s\n%s\n", id, seq); err != nil {
			return missing, err
		}
	}
	return missing, bw.Flush()
}
