package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TimothyStephens/magi/internal/domain/chemnet"
	"github.com/TimothyStephens/magi/internal/infrastructure/database/neo4j"
	"github.com/TimothyStephens/magi/internal/infrastructure/monitoring/logging"
	"github.com/TimothyStephens/magi/internal/reference"
	"github.com/TimothyStephens/magi/pkg/errors"
)

// NetworkStats summarizes a loaded chemical network.
type NetworkStats struct {
	Source string `json:"source"`
	Groups int    `json:"groups"`
	Edges  int    `json:"edges"`
}

func (s NetworkStats) String() string {
	return fmt.Sprintf("%s network: %d groups, %d edges", s.Source, s.Groups, s.Edges)
}

func (s NetworkStats) TableHeaders() []string { return []string{"source", "groups", "edges"} }

func (s NetworkStats) TableRows() [][]string {
	return [][]string{{s.Source, strconv.Itoa(s.Groups), strconv.Itoa(s.Edges)}}
}

// NewNetworkCmd creates the network command group.
func NewNetworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Inspect the chemical network or import it into Neo4j",
	}
	cmd.AddCommand(newNetworkStatsCmd(), newNetworkImportCmd())
	return cmd
}

func newNetworkStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the configured network and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			res := &resources{logger: cliCtx.Logger}
			defer res.Close()

			src, err := networkSource(cmd.Context(), cliCtx.Config, res, cliCtx.Logger)
			if err != nil {
				return err
			}
			if src == nil {
				return errors.New(errors.ErrCodeConfig, "no chemical network configured")
			}
			n, err := src.Load(cmd.Context())
			if err != nil {
				return err
			}
			return PrintResult(cmd, NetworkStats{Source: cliCtx.Config.Network.Source, Groups: n.Len(), Edges: n.EdgeCount()})
		},
	}
}

func newNetworkImportCmd() *cobra.Command {
	var groupsPath, edgesPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Write the group and edge tables into Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg, logger := cliCtx.Config, cliCtx.Logger
			if groupsPath == "" {
				groupsPath = cfg.Reference.Groups
			}
			if edgesPath == "" {
				edgesPath = cfg.Reference.Network
			}
			groups, edges, err := readNetworkTables(groupsPath, edgesPath)
			if err != nil {
				return err
			}
			// reject tables the network builder would refuse before writing
			if _, err := chemnet.NewNetwork(groups, edges); err != nil {
				return err
			}
			if cfg.Network.Neo4j.URI == "" {
				return errors.New(errors.ErrCodeConfig, "network.neo4j.uri is not configured")
			}

			res := &resources{logger: logger}
			defer res.Close()
			drv, err := openNeo4j(cmd.Context(), cfg, res, logger)
			if err != nil {
				return err
			}
			if err := neo4j.NewNetworkStore(drv, logger).Save(cmd.Context(), groups, edges); err != nil {
				return err
			}
			logger.Info("network imported", logging.Int("groups", len(groups)), logging.Int("edges", len(edges)))
			return PrintResult(cmd, NetworkStats{Source: "neo4j", Groups: len(groups), Edges: len(edges)})
		},
	}
	cmd.Flags().StringVar(&groupsPath, "groups", "", "group table (default: reference.groups)")
	cmd.Flags().StringVar(&edgesPath, "edges", "", "edge table (default: reference.network)")
	return cmd
}

func readNetworkTables(groupsPath, edgesPath string) ([]chemnet.Group, []chemnet.Edge, error) {
	if groupsPath == "" {
		return nil, nil, errors.InvalidParam("a group table is required")
	}
	gt, err := reference.ReadTable(groupsPath)
	if err != nil {
		return nil, nil, err
	}
	groups, err := reference.GroupsFromTable(gt)
	if err != nil {
		return nil, nil, err
	}
	if edgesPath == "" {
		return groups, nil, nil
	}
	et, err := reference.ReadTable(edgesPath)
	if err != nil {
		return nil, nil, err
	}
	edges, err := reference.EdgesFromTable(et)
	if err != nil {
		return nil, nil, err
	}
	return groups, edges, nil
}
