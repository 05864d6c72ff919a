package homology

import (
	"fmt"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// Chunk is the half-open index range [Start, End) of one partition.
type Chunk struct {
	Start int
	End   int
}

// Len returns the number of items in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// Partition splits n items into parts contiguous chunks in input order.
// Every chunk holds n/parts items and the first n%parts chunks hold one
// more, so sizes differ by at most one.  With parts > n the trailing chunks
// are empty.
func Partition(n, parts int) ([]Chunk, error) {
	if parts < 1 {
		return nil, errors.InvalidParam("partition count must be ≥ 1").
			WithDetail(fmt.Sprintf("parts=%d", parts))
	}
	if n < 0 {
		return nil, errors.InvalidParam("item count must be ≥ 0").
			WithDetail(fmt.Sprintf("n=%d", n))
	}
	size, remainder := n/parts, n%parts
	chunks := make([]Chunk, parts)
	start := 0
	for i := range chunks {
		end := start + size
		if i < remainder {
			end++
		}
		chunks[i] = Chunk{Start: start, End: end}
		start = end
	}
	return chunks, nil
}
