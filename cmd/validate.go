package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oilroute/dispatch/config"
	"github.com/oilroute/dispatch/core/topology"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and topology files",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	topo, err := topology.Load(cfg.TopologyPath)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}
	if err := topo.Validate(); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	fmt.Printf("configuration ok: %d tanks, %d pipelines, %d branches\n",
		len(topo.Tanks), len(topo.Pipelines), len(topo.Branches))
	return nil
}
