package pipeline

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/TimothyStephens/magi/internal/domain/homology"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/internal/domain/scoring"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

var (
	linkColumns = []string{"original_compound", "level", "neighbor", "reaction_id", "note"}
	hitColumns  = []string{"query", "subject", "reaction_id", "e_score"}
)

func writeFile(path string, write func(w io.Writer) error) error {
	wc, err := reference.Create(path)
	if err != nil {
		return err
	}
	if err := write(wc); err != nil {
		wc.Close()
		return errors.Wrap(err, errors.ErrCodeIO, "failed to write "+path)
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeIO, "failed to close "+path)
	}
	return nil
}

func writeResults(path string, rows []scoring.Result) error {
	return writeFile(path, func(w io.Writer) error { return scoring.WriteCSV(w, rows) })
}

func writeFASTA(path string, set *homology.SequenceSet) error {
	return writeFile(path, func(w io.Writer) error {
		_, err := homology.WriteFASTA(w, set.IDs(), set)
		return err
	})
}

// WriteLinks writes compound to reaction links as CSV.
func WriteLinks(w io.Writer, links []reaction.Link) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(linkColumns); err != nil {
		return err
	}
	for _, l := range links {
		id := ""
		if l.ReactionID != nil {
			id = strconv.Itoa(*l.ReactionID)
		}
		if err := cw.Write([]string{l.OriginalCompound, strconv.Itoa(l.Level), l.Neighbor, id, string(l.Note)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeLinks(path string, links []reaction.Link) error {
	return writeFile(path, func(w io.Writer) error { return WriteLinks(w, links) })
}

// WriteHits writes reaction-linked homology hits as CSV.
func WriteHits(w io.Writer, hits []scoring.ReactionHit) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(hitColumns); err != nil {
		return err
	}
	for _, h := range hits {
		id := ""
		if h.ReactionID != nil {
			id = strconv.Itoa(*h.ReactionID)
		}
		if err := cw.Write([]string{h.Query, h.Subject, id, strconv.FormatFloat(h.Score, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeHits(path string, hits []scoring.ReactionHit) error {
	return writeFile(path, func(w io.Writer) error { return WriteHits(w, hits) })
}
