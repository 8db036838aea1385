package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/seantiz/hostrunner/internal/app"
	"github.com/seantiz/hostrunner/internal/config"
	"github.com/seantiz/hostrunner/internal/globalctx"
	"github.com/seantiz/hostrunner/internal/hostbridge"
	"github.com/seantiz/hostrunner/internal/model"
	"github.com/seantiz/hostrunner/internal/operation"
	"github.com/seantiz/hostrunner/internal/store"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hostrunner",
		Short: "Serialized operation runner for an embedding host",
		Long: "hostrunner queues named operations, executes them one at a time " +
			"against the host bridge and records every execution.",
		SilenceUsage: true,
		RunE:         runServe,
	}
	addServeFlags(rootCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the host bridge connection",
		RunE:  runServe,
	}
	addServeFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newOperationsCommand())
	rootCmd.AddCommand(newHistoryCommand())
	return rootCmd
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("listen", "", "HTTP listen address (overrides HOSTRUNNER_LISTEN_ADDR)")
	cmd.Flags().String("db", "", "SQLite database path (overrides HOSTRUNNER_DB_PATH)")
	cmd.Flags().String("bridge-url", "", "host bridge websocket URL (overrides HOSTRUNNER_BRIDGE_URL)")
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.ListenAddr = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("bridge-url"); v != "" {
		cfg.BridgeURL = v
	}
	return cfg
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	logger, closer := cfg.Logger(os.Stdout)
	defer closer.Close()

	if cfg.BridgeURL == "" {
		logger.Warn("no host bridge configured, submissions will be dropped")
	}

	a, err := app.New(cfg, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func newOperationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List the registered operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			reg, err := operation.NewDefaultRegistry(hostbridge.NewClient(nil, logger), globalctx.New())
			if err != nil {
				return err
			}
			return renderOperations(cmd.OutOrStdout(), reg.List())
		},
	}
}

func renderOperations(w io.Writer, descs []operation.Descriptor) error {
	rows := [][]string{{"NAME", "DISPLAY NAME", "CONTEXT", "DESCRIPTION"}}
	for _, d := range descs {
		reads := "-"
		if len(d.Reads) > 0 {
			reads = fmt.Sprint(d.Reads)
		}
		rows = append(rows, []string{d.Name, d.DisplayName, reads, d.Description})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded executions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd)
			op, _ := cmd.Flags().GetString("operation")
			limit, _ := cmd.Flags().GetInt("limit")

			db, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			execs, total, err := db.ListExecutions(context.Background(), store.ExecutionFilter{
				Operation: op,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			if err := renderExecutions(cmd.OutOrStdout(), execs); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d executions\n", len(execs), total)
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite database path (overrides HOSTRUNNER_DB_PATH)")
	cmd.Flags().StringP("operation", "o", "", "only show this operation")
	cmd.Flags().IntP("limit", "n", 20, "maximum number of executions")
	return cmd
}

func renderExecutions(w io.Writer, execs []*model.Execution) error {
	rows := [][]string{{"ID", "OPERATION", "STATUS", "DURATION MS", "VALUE", "QUEUED AT"}}
	for _, e := range execs {
		duration := "-"
		if e.DurationMS != nil {
			duration = strconv.FormatFloat(*e.DurationMS, 'f', 2, 64)
		}
		value := e.SimpleDisplayValue
		if value == "" {
			value = e.Value
		}
		if e.Error != "" {
			value = e.Error
		}
		rows = append(rows, []string{e.ID, e.Operation, e.Status, duration, value, e.QueuedAt.Format("2006-01-02 15:04:05")})
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}
