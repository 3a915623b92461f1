// Command bimatlas runs the BimAtlas server and offers project, branch and
// ingestion management from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bimatlas/bimatlas/internal/config"
	"github.com/bimatlas/bimatlas/internal/query"
	"github.com/bimatlas/bimatlas/internal/server"
	"github.com/bimatlas/bimatlas/internal/storage/postgres"
	"github.com/bimatlas/bimatlas/internal/telemetry"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "bimatlas",
		Short:         "Versioned IFC ingestion and query engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(serveCmd(), ingestCmd(), projectCmd(), branchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects using the environment configuration.
func openStore(ctx context.Context, log *zap.Logger) (*postgres.Store, *config.Config, error) {
	cfg := config.Load()
	store, err := postgres.Open(ctx, cfg.DSN(), postgres.Options{
		GraphName: cfg.GraphName,
		Logger:    log,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, cfg, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer store.Close()

			metrics, err := telemetry.Init(log)
			if err != nil {
				return err
			}
			defer metrics.Shutdown(context.Background())

			qs := query.New(store, store.Graph(), log)
			srv := server.New(store, qs, log, metrics)
			if err := srv.ListenAndServe(ctx, cfg.ListenAddr()); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	var branchID int64
	var label string
	cmd := &cobra.Command{
		Use:   "ingest <file.ifc>",
		Short: "Ingest an IFC file as a new revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			store, _, err := openStore(ctx, log)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.Ingest(ctx, branchID, args[0], label)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().Int64Var(&branchID, "branch", 0, "target branch id (required)")
	cmd.Flags().StringVar(&label, "label", "", "revision label")
	cmd.MarkFlagRequired("branch")
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project with its main branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *postgres.Store) error {
				p, err := store.CreateProject(ctx, args[0], description)
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "project description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *postgres.Store) error {
				projects, err := store.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSON(projects)
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func branchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Manage branches",
	}

	var projectID int64
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *postgres.Store) error {
				b, err := store.CreateBranch(ctx, projectID, args[0])
				if err != nil {
					return err
				}
				return printJSON(b)
			})
		},
	}
	create.Flags().Int64Var(&projectID, "project", 0, "project id (required)")
	create.MarkFlagRequired("project")

	var listProjectID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List branches of a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store *postgres.Store) error {
				branches, err := store.ListBranches(ctx, listProjectID)
				if err != nil {
					return err
				}
				return printJSON(branches)
			})
		},
	}
	list.Flags().Int64Var(&listProjectID, "project", 0, "project id (required)")
	list.MarkFlagRequired("project")

	cmd.AddCommand(create, list)
	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, *postgres.Store) error) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, _, err := openStore(ctx, log)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
