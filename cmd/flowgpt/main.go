package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "flowgpt",
		Short: "Run text-processing pipelines",
		Long: `flowgpt runs chains of text-processing nodes (clean, uppercase,
summarize, translate, email) and records every step of every run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./flowgpt.yaml)")

	cfgPath := func() string { return configFile }
	root.AddCommand(
		newServeCmd(cfgPath),
		newMigrateCmd(cfgPath),
		newSeedCmd(cfgPath),
		newRunCmd(cfgPath),
		newStatusCmd(cfgPath),
		newMCPCmd(cfgPath),
		newVersionCmd(),
	)
	return root
}
