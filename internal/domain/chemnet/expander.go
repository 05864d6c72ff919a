package chemnet

import (
	"sort"

	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
)

// Level is the set of neighbor compounds at one network distance.
type Level struct {
	Distance  int
	Compounds []string
}

// Expander finds the network neighbors of a compound.
type Expander struct {
	network *Network
	logger  logging.Logger
}

// NewExpander returns an Expander over network.
func NewExpander(network *Network, logger logging.Logger) *Expander {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Expander{network: network, logger: logger}
}

// Neighbors returns the neighbor compounds of key grouped by distance 1..depth,
// in ascending distance.  Depth 0 returns nothing.  A compound without a group
// is a lookup miss: a warning is logged and the result is empty.
func (e *Expander) Neighbors(key string, depth int) []Level {
	if depth <= 0 {
		return nil
	}
	group, ok := e.network.GroupOf(key)
	if !ok {
		e.logger.Warn("compound group not found; skipping chemical network search",
			logging.String("compound", key))
		return nil
	}
	return e.NeighborsOfGroup(group, depth)
}

// NeighborsOfGroup is Neighbors for a compound whose group is already known.
func (e *Expander) NeighborsOfGroup(group, depth int) []Level {
	if depth <= 0 {
		return nil
	}
	if _, ok := e.network.Group(group); !ok {
		e.logger.Warn("compound group not in chemical network", logging.Int("group_id", group))
		return nil
	}

	buckets := make(map[int][]int)
	for node, d := range e.network.Distances(group, depth) {
		if d == 0 {
			continue
		}
		buckets[d] = append(buckets[d], node)
	}

	levels := make([]Level, 0, len(buckets))
	for d := 1; d <= depth; d++ {
		nodes, ok := buckets[d]
		if !ok {
			continue
		}
		sort.Ints(nodes)
		var compounds []string
		for _, node := range nodes {
			g, _ := e.network.Group(node)
			compounds = append(compounds, g.Members...)
		}
		levels = append(levels, Level{Distance: d, Compounds: compounds})
	}
	return levels
}
