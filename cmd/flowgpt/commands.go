package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rendis/flowgpt/internal/cache"
	"github.com/rendis/flowgpt/internal/diagram"
	"github.com/rendis/flowgpt/internal/seed"
	"github.com/rendis/flowgpt/pkg/mcp"
	"github.com/rendis/flowgpt/pkg/schema"
)

func newMigrateCmd(configFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.store.Driver())
			return nil
		},
	}
}

func newSeedCmd(configFile func() string) *cobra.Command {
	var (
		file       string
		runSamples bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample nodes, pipelines and contacts",
		Long: `Load sample data into an empty database. Nothing is written when
any node already exists. --file replaces the built-in samples with an HCL file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSeedFile(file)
			if err != nil {
				return err
			}
			a, err := setup(cmd.Context(), configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := seed.NewSeeder(a.catalog, a.executor, a.logger).
				Seed(cmd.Context(), f, seed.Options{RunSamples: runSamples})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "HCL seed file (default: built-in samples)")
	cmd.Flags().BoolVar(&runSamples, "run-samples", false, "execute every sample text through every pipeline")
	return cmd
}

func loadSeedFile(path string) (*seed.File, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}

func newRunCmd(configFile func() string) *cobra.Command {
	var (
		pipelineID int64
		text       string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline and print its final state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pipelineID <= 0 {
				return schema.NewError(schema.ErrCodeValidation, "--pipeline must be a positive id")
			}
			a, err := setup(cmd.Context(), configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.executor.Execute(cmd.Context(), pipelineID, text)
			if res != nil {
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&pipelineID, "pipeline", 0, "pipeline id")
	cmd.Flags().StringVar(&text, "text", "", "input text")
	cmd.MarkFlagRequired("pipeline")
	return cmd
}

func newStatusCmd(configFile func() string) *cobra.Command {
	var showDiagram bool
	cmd := &cobra.Command{
		Use:   "status EXECUTION_ID",
		Short: "Print the recorded status of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return schema.NewErrorf(schema.ErrCodeValidation, "invalid execution id %q", args[0])
			}
			a, err := setup(cmd.Context(), configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if showDiagram {
				model, err := diagram.Load(cmd.Context(), a.store, 0, id)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), diagram.RenderASCII(model))
				return nil
			}

			st, err := cache.NewStatuses(a.store, nil, a.logger).Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().BoolVar(&showDiagram, "diagram", false, "print an ASCII diagram of the run instead of JSON")
	return cmd
}

func newMCPCmd(configFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context(), configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewFlowServer(mcp.FlowServerDeps{
				Runner:    a.executor,
				Statuses:  cache.NewStatuses(a.store, nil, a.logger),
				Pipelines: a.catalog,
				Diagrams:  a.store,
				Logger:    a.logger,
			}).Serve(cmd.Context())
		},
	}
}
