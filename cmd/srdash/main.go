package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sr-dashboard-go/internal/config"
	"sr-dashboard-go/internal/dashboard"
	"sr-dashboard-go/internal/dataset"
	"sr-dashboard-go/internal/httpapi"
	"sr-dashboard-go/internal/layout"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/types"
)

const (
	defaultDepartmentsData = "datasets/department-sr-ao.csv"
	defaultRequestsData    = "datasets/service-requests.csv"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "srdash",
		Short: "Interactive maps of Boston 311 service requests",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyLogging(*cfg)
		},
		SilenceUsage: true,
	}

	departments := &cobra.Command{
		Use:   "departments",
		Short: "Serve the departments dashboard with its department and days-open widgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg, dataset.DepartmentSchema, defaultDepartmentsData, layout.Departments,
				func(t types.Table, doc layout.Document) (board, error) {
					return dashboard.New(t, doc, dashboard.Options{CacheSize: cfg.FrameCacheSize})
				})
		},
	}

	requests := &cobra.Command{
		Use:   "requests",
		Short: "Serve the static map of every service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg, dataset.CoordinateSchema, defaultRequestsData, layout.Requests,
				func(t types.Table, doc layout.Document) (board, error) {
					return dashboard.NewStaticMap(t, doc)
				})
		},
	}

	var schemaName string
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the dataset summary as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, fallback := dataset.DepartmentSchema, defaultDepartmentsData
			switch schemaName {
			case dataset.DepartmentSchema.Name:
			case dataset.CoordinateSchema.Name:
				schema, fallback = dataset.CoordinateSchema, defaultRequestsData
			default:
				return goerr.New("unknown schema", goerr.V("schema", schemaName))
			}
			table, err := load(cmd.Context(), *cfg, schema, fallback)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dataset.Summarize(table))
		},
	}
	summary.Flags().StringVar(&schemaName, "schema", dataset.DepartmentSchema.Name, "dataset schema: departments or requests")

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.DatasetPath, "dataset", cfg.DatasetPath, "dataset path or http(s) URL (csv or xlsx)")
	flags.StringVar(&cfg.LayoutPath, "layout", cfg.LayoutPath, "layout document overriding the built-in one")
	flags.StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	flags.StringVar(&cfg.Environment, "environment", cfg.Environment, "local for console logs, anything else for JSON")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.IntVar(&cfg.FrameCacheSize, "cache-size", cfg.FrameCacheSize, "memoised frames kept by the departments dashboard")
	flags.StringSliceVar(&cfg.AllowedOrigins, "allowed-origin", cfg.AllowedOrigins, "origin allowed to call the API (repeatable)")

	root.AddCommand(departments, requests, summary)
	return root
}

// applyLogging hands the resolved settings to every later logger.New().
func applyLogging(cfg config.Config) {
	_ = os.Setenv("ENVIRONMENT", cfg.Environment)
	_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// board is what the server publishes and main tears down.
type board interface {
	httpapi.Board
	Close()
}

func load(ctx context.Context, cfg config.Config, schema dataset.Schema, fallback string) (types.Table, error) {
	path := cfg.DatasetPath
	if path == "" {
		path = fallback
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	return dataset.Load(ctx, path, schema)
}

func document(cfg config.Config, builtin func() layout.Document) (layout.Document, error) {
	if cfg.LayoutPath == "" {
		return builtin(), nil
	}
	return layout.LoadFile(cfg.LayoutPath)
}

func serve(
	ctx context.Context,
	cfg config.Config,
	schema dataset.Schema,
	fallback string,
	builtin func() layout.Document,
	build func(types.Table, layout.Document) (board, error),
) error {
	log := logger.New()
	log.WithField("service", "sr-dashboard-go").WithField("dashboard", schema.Name).Info("starting service")

	table, err := load(ctx, cfg, schema, fallback)
	if err != nil {
		log.WithError(err).Error("failed to load dataset")
		return err
	}
	doc, err := document(cfg, builtin)
	if err != nil {
		log.WithError(err).Error("failed to load layout")
		return err
	}
	b, err := build(table, doc)
	if err != nil {
		log.WithError(err).Error("failed to build dashboard")
		return err
	}

	srv := httpapi.NewServer(httpapi.Config{Addr: cfg.Addr(), AllowedOrigins: cfg.AllowedOrigins}, b)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server terminated")
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// closing the source ends every websocket stream
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
