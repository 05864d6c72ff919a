// Package chemnet implements the chemical network: an undirected graph over
// structural compound groups whose edges form a minimum spanning tree of
// structural similarity, together with the bounded neighbor search used to
// reach reactions through structurally related compounds.
package chemnet

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// MemberSeparator joins member identifiers in serialized group tables.
const MemberSeparator = "///"

// Group is a chemical-network node: a set of structurally equivalent
// compounds sharing one skeleton.
type Group struct {
	ID      int
	Members []string
}

// Edge is an undirected, weighted network edge between two groups.
type Edge struct {
	Source int
	Target int
	Weight float64
}

// Source loads a chemical network from a backing store.
type Source interface {
	Load(ctx context.Context) (*Network, error)
}

// SplitMembers splits a serialized member list.
func SplitMembers(field string) []string {
	var out []string
	for _, m := range strings.Split(field, MemberSeparator) {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// Network is the immutable chemical network of a run.
type Network struct {
	groups    []Group
	byID      map[int]int
	adjacency map[int][]int
	edges     int
}

// NewNetwork validates and indexes groups and edges.  Groups are ordered by
// id, which is the order membership lookups scan in.  Every edge endpoint
// must be a known group and group ids must be unique.
func NewNetwork(groups []Group, edges []Edge) (*Network, error) {
	n := &Network{
		groups:    append([]Group(nil), groups...),
		byID:      make(map[int]int, len(groups)),
		adjacency: make(map[int][]int, len(groups)),
	}
	sort.SliceStable(n.groups, func(i, j int) bool { return n.groups[i].ID < n.groups[j].ID })

	for i, g := range n.groups {
		if _, dup := n.byID[g.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidNetwork, "duplicate compound group").
				WithDetail(fmt.Sprintf("group_id=%d", g.ID))
		}
		n.byID[g.ID] = i
	}

	for _, e := range edges {
		for _, end := range []int{e.Source, e.Target} {
			if _, ok := n.byID[end]; !ok {
				return nil, errors.New(errors.ErrCodeInvalidNetwork, "edge references unknown compound group").
					WithDetail(fmt.Sprintf("edge=%d-%d group_id=%d", e.Source, e.Target, end))
			}
		}
		if e.Source == e.Target {
			continue
		}
		n.adjacency[e.Source] = append(n.adjacency[e.Source], e.Target)
		n.adjacency[e.Target] = append(n.adjacency[e.Target], e.Source)
		n.edges++
	}
	for id := range n.adjacency {
		sort.Ints(n.adjacency[id])
	}
	return n, nil
}

// Len returns the number of groups.
func (n *Network) Len() int { return len(n.groups) }

// EdgeCount returns the number of undirected edges.
func (n *Network) EdgeCount() int { return n.edges }

// Group returns the group with the given id.
func (n *Network) Group(id int) (Group, bool) {
	i, ok := n.byID[id]
	if !ok {
		return Group{}, false
	}
	return n.groups[i], true
}

// GroupOf finds the group of a compound by scanning memberships for the
// identifier's skeleton block.  When several groups match the first, by
// ascending id, wins.
func (n *Network) GroupOf(key string) (int, bool) {
	query := compound.FirstBlock(key)
	if query == "" {
		return 0, false
	}
	for _, g := range n.groups {
		for _, m := range g.Members {
			if strings.Contains(m, query) {
				return g.ID, true
			}
		}
	}
	return 0, false
}

// Distances runs a breadth-first search from origin and returns the hop
// distance of every group reachable within maxDepth, origin included at 0.
func (n *Network) Distances(origin, maxDepth int) map[int]int {
	dist := map[int]int{origin: 0}
	frontier := []int{origin}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int
		for _, node := range frontier {
			for _, nb := range n.adjacency[node] {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = depth
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return dist
}
