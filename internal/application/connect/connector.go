// Package connect links observed compounds to candidate reactions, directly,
// through tautomers and through chemical network neighbors.
package connect

import (
	"context"

	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/domain/compound"
	"github.com/TimothyStephens/magi/internal/domain/reaction"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
)

// TautomerFinder enumerates the tautomers of a compound as identifier
// fragments usable for participant containment lookups.  Implementations
// degrade to the compound's own skeleton rather than fail on structures
// they cannot process; an error means the collaborator is unusable.
type TautomerFinder interface {
	Tautomers(ctx context.Context, c compound.Compound) ([]string, error)
}

// WarningCounter counts recoverable lookup misses.
type WarningCounter interface {
	IncWarning(kind string)
}

type nopCounter struct{}

func (nopCounter) IncWarning(string) {}

// Options are the compound connection run parameters.
type Options struct {
	// Tautomer enables tautomer searches.
	Tautomer bool
	// NeighborLevel is the chemical network search depth; 0 disables it.
	NeighborLevel int
}

// Connector links compounds to reactions over a reference context.
type Connector struct {
	ref       *reference.Context
	expander  *chemnet.Expander
	tautomers TautomerFinder
	opts      Options
	logger    logging.Logger
	warnings  WarningCounter
}

// Option configures a Connector.
type Option func(*Connector)

// WithWarningCounter records lookup misses.
func WithWarningCounter(w WarningCounter) Option {
	return func(c *Connector) {
		if w != nil {
			c.warnings = w
		}
	}
}

// NewConnector returns a Connector.  tautomers may be nil when opts
// disables tautomer searches.  Without a chemical network in ref the
// neighbor search is skipped.
func NewConnector(ref *reference.Context, tautomers TautomerFinder, opts Options, logger logging.Logger, options ...Option) *Connector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("connect")
	c := &Connector{ref: ref, tautomers: tautomers, opts: opts, logger: logger, warnings: nopCounter{}}
	for _, o := range options {
		o(c)
	}
	if opts.NeighborLevel > 0 {
		if ref.Network == nil {
			logger.Warn("no chemical network loaded; neighbor search disabled",
				logging.Int("neighbor_level", opts.NeighborLevel))
			c.opts.NeighborLevel = 0
		} else {
			c.expander = chemnet.NewExpander(ref.Network, logger)
		}
	}
	if c.opts.Tautomer && tautomers == nil {
		logger.Warn("no tautomer collaborator configured; tautomer search disabled")
		c.opts.Tautomer = false
	}
	return c
}

// Connect returns the best link of key to every reaction it reaches.  A
// compound that reaches nothing yields a single link without reaction.
// Malformed identifiers are rejected.
func (c *Connector) Connect(ctx context.Context, key string) ([]reaction.Link, error) {
	if err := compound.ValidateInChIKey(key); err != nil {
		return nil, err
	}
	search := compound.TwoBlock(key)

	var links []reaction.Link
	add := func(ids []int, level int, neighbor string, note reaction.Note) {
		for _, id := range ids {
			links = append(links, reaction.Link{
				OriginalCompound: key,
				Level:            level,
				Neighbor:         neighbor,
				ReactionID:       reaction.IntPtr(id),
				Note:             note,
			})
		}
	}

	add(c.ref.Reactions.FindByCompound(search), 0, "", reaction.NoteDirect)

	if c.opts.Tautomer {
		self, ok := c.ref.Compounds.Lookup(key)
		if !ok {
			c.warnings.IncWarning("compound_not_found")
			c.logger.Warn("compound not in compound table; skipping tautomer and neighbor search",
				logging.String("compound", key))
			return finish(key, links), nil
		}
		ids, err := c.tautomerReactions(ctx, self)
		if err != nil {
			return nil, err
		}
		add(ids, 0, "", reaction.NoteFlatTautomer)
	}

	if c.expander != nil {
		levels := c.expander.Neighbors(key, c.opts.NeighborLevel)
		if levels == nil {
			c.warnings.IncWarning("group_not_found")
		}
		for _, lvl := range levels {
			for _, neighbor := range lvl.Compounds {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				add(c.ref.Reactions.FindByCompound(neighbor), lvl.Distance, neighbor, reaction.NoteDirect)
				if !c.opts.Tautomer {
					continue
				}
				nc, ok := c.ref.Compounds.Lookup(neighbor)
				if !ok {
					continue
				}
				ids, err := c.tautomerReactions(ctx, nc)
				if err != nil {
					return nil, err
				}
				add(ids, lvl.Distance, neighbor, reaction.NoteFlatTautomer)
			}
		}
	}
	return finish(key, links), nil
}

func (c *Connector) tautomerReactions(ctx context.Context, cpd compound.Compound) ([]int, error) {
	keys, err := c.tautomers.Tautomers(ctx, cpd)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return c.ref.Reactions.FindByAny(keys), nil
}

func finish(key string, links []reaction.Link) []reaction.Link {
	if len(links) == 0 {
		return []reaction.Link{{OriginalCompound: key, Note: reaction.NoteDirect}}
	}
	return reaction.BestLinks(links)
}

// ConnectAll connects every distinct compound of keys, in first-seen order,
// and concatenates their links.
func (c *Connector) ConnectAll(ctx context.Context, keys []string) ([]reaction.Link, error) {
	seen := make(map[string]struct{}, len(keys))
	var out []reaction.Link
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		links, err := c.Connect(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, links...)
	}
	withReaction := 0
	for _, l := range out {
		if l.HasReaction() {
			withReaction++
		}
	}
	c.logger.Info("compounds connected",
		logging.Int("compounds", len(seen)),
		logging.Int("links", len(out)),
		logging.Int("links_with_reaction", withReaction))
	return out, nil
}

// ReactionIDs returns the distinct reactions of links in first-seen order.
func ReactionIDs(links []reaction.Link) []int {
	seen := make(map[int]struct{})
	var ids []int
	for _, l := range links {
		if !l.HasReaction() {
			continue
		}
		if _, dup := seen[*l.ReactionID]; dup {
			continue
		}
		seen[*l.ReactionID] = struct{}{}
		ids = append(ids, *l.ReactionID)
	}
	return ids
}
