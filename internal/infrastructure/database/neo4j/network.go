package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// Graph model: (:CompoundGroup {group_id, members}) nodes joined by
// [:SIMILAR_TO {weight}] relationships, one per spanning-tree edge.
const (
	cypherLoadGroups = `MATCH (g:CompoundGroup)
RETURN g.group_id AS group_id, g.members AS members
ORDER BY group_id`

	cypherLoadEdges = `MATCH (a:CompoundGroup)-[r:SIMILAR_TO]->(b:CompoundGroup)
RETURN a.group_id AS source, b.group_id AS target, coalesce(r.weight, 1.0) AS weight`

	cypherConstraint = `CREATE CONSTRAINT compound_group_id IF NOT EXISTS
FOR (g:CompoundGroup) REQUIRE g.group_id IS UNIQUE`

	cypherSaveGroups = `UNWIND $rows AS row
MERGE (g:CompoundGroup {group_id: row.group_id})
SET g.members = row.members`

	cypherSaveEdges = `UNWIND $rows AS row
MATCH (a:CompoundGroup {group_id: row.source}), (b:CompoundGroup {group_id: row.target})
MERGE (a)-[r:SIMILAR_TO]->(b)
SET r.weight = row.weight`
)

const saveBatchSize = 1000

// Executor runs managed transactions.  *Driver implements it.
type Executor interface {
	ExecuteRead(ctx context.Context, work func(Transaction) (interface{}, error)) (interface{}, error)
	ExecuteWrite(ctx context.Context, work func(Transaction) (interface{}, error)) (interface{}, error)
}

// NetworkStore reads and writes the chemical network.  It implements
// chemnet.Source.
type NetworkStore struct {
	exec   Executor
	logger logging.Logger
}

func NewNetworkStore(exec Executor, log logging.Logger) *NetworkStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &NetworkStore{exec: exec, logger: log}
}

// Load reads all groups and edges and builds the network.
func (s *NetworkStore) Load(ctx context.Context) (*chemnet.Network, error) {
	groups, err := s.readGroups(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := s.readEdges(ctx)
	if err != nil {
		return nil, err
	}
	n, err := chemnet.NewNetwork(groups, edges)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Chemical network loaded from Neo4j",
		logging.Int("groups", n.Len()), logging.Int("edges", n.EdgeCount()))
	return n, nil
}

func (s *NetworkStore) readGroups(ctx context.Context) ([]chemnet.Group, error) {
	out, err := s.exec.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypherLoadGroups, nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, res, mapGroup)
	})
	if err != nil {
		return nil, err
	}
	groups, _ := out.([]chemnet.Group)
	return groups, nil
}

func (s *NetworkStore) readEdges(ctx context.Context) ([]chemnet.Edge, error) {
	out, err := s.exec.ExecuteRead(ctx, func(tx Transaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypherLoadEdges, nil)
		if err != nil {
			return nil, err
		}
		return CollectRecords(ctx, res, mapEdge)
	})
	if err != nil {
		return nil, err
	}
	edges, _ := out.([]chemnet.Edge)
	return edges, nil
}

// Save merges groups and edges into the graph in batches.
func (s *NetworkStore) Save(ctx context.Context, groups []chemnet.Group, edges []chemnet.Edge) error {
	groupRows := make([]map[string]any, len(groups))
	for i, g := range groups {
		members := make([]any, len(g.Members))
		for j, m := range g.Members {
			members[j] = m
		}
		groupRows[i] = map[string]any{"group_id": int64(g.ID), "members": members}
	}
	edgeRows := make([]map[string]any, len(edges))
	for i, e := range edges {
		edgeRows[i] = map[string]any{"source": int64(e.Source), "target": int64(e.Target), "weight": e.Weight}
	}

	_, err := s.exec.ExecuteWrite(ctx, func(tx Transaction) (interface{}, error) {
		res, err := tx.Run(ctx, cypherConstraint, nil)
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		if err := runBatches(ctx, tx, cypherSaveGroups, groupRows); err != nil {
			return nil, err
		}
		return nil, runBatches(ctx, tx, cypherSaveEdges, edgeRows)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Chemical network saved to Neo4j",
		logging.Int("groups", len(groups)), logging.Int("edges", len(edges)))
	return nil
}

func runBatches(ctx context.Context, tx Transaction, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += saveBatchSize {
		end := start + saveBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]any, 0, end-start)
		for _, r := range rows[start:end] {
			batch = append(batch, r)
		}
		res, err := tx.Run(ctx, cypher, map[string]any{"rows": batch})
		if err != nil {
			return err
		}
		if _, err := res.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Record mapping
// ─────────────────────────────────────────────────────────────────────────────

func mapGroup(rec *neo4j.Record) (chemnet.Group, error) {
	id, err := intValue(rec, "group_id")
	if err != nil {
		return chemnet.Group{}, err
	}
	raw, _ := rec.Get("members")
	var members []string
	switch v := raw.(type) {
	case []any:
		for _, m := range v {
			if s, ok := m.(string); ok && s != "" {
				members = append(members, s)
			}
		}
	case string:
		members = chemnet.SplitMembers(v)
	case nil:
	default:
		return chemnet.Group{}, malformed("members", raw)
	}
	return chemnet.Group{ID: id, Members: members}, nil
}

func mapEdge(rec *neo4j.Record) (chemnet.Edge, error) {
	src, err := intValue(rec, "source")
	if err != nil {
		return chemnet.Edge{}, err
	}
	dst, err := intValue(rec, "target")
	if err != nil {
		return chemnet.Edge{}, err
	}
	w := 1.0
	raw, _ := rec.Get("weight")
	switch v := raw.(type) {
	case float64:
		w = v
	case int64:
		w = float64(v)
	case nil:
	default:
		return chemnet.Edge{}, malformed("weight", raw)
	}
	return chemnet.Edge{Source: src, Target: dst, Weight: w}, nil
}

func intValue(rec *neo4j.Record, key string) (int, error) {
	raw, ok := rec.Get(key)
	if !ok {
		return 0, errors.New(errors.ErrCodeInvalidNetwork, "missing record field").WithDetail(key)
	}
	switch v := raw.(type) {
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, malformed(key, raw)
}

func malformed(key string, v any) error {
	return errors.New(errors.ErrCodeInvalidNetwork, "unexpected record value").
		WithDetail(fmt.Sprintf("%s=%v (%T)", key, v, v))
}
