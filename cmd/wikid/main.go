// Package main implements the wikid CLI: generate, maintain, and translate
// repository wikis from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/config"
	"github.com/fyrsmithlabs/wikid/internal/logging"
	"github.com/fyrsmithlabs/wikid/internal/orchestrator"
	"github.com/fyrsmithlabs/wikid/internal/store"
	"github.com/fyrsmithlabs/wikid/internal/workspace"
)

var (
	configPath  string
	repoDir     string
	dbPath      string
	metricsAddr string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wikid",
	Short: "Generate and maintain repository wikis with LLM agents",
	Long: `wikid turns a checked-out git repository into a structured wiki:
a catalog of pages, generated content for every page, an architecture
mind map, and translations into further languages.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "r", ".", "path to the checked-out repository")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database file (overrides config; empty uses the config value)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running (e.g. :9091)")
}

// app bundles everything a subcommand needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  store.Store
	orch   *orchestrator.Orchestrator

	closeStore func() error
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setup loads configuration and wires the pipeline.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, closeStore: func() error { return nil }}

	if cfg.Store.Path != "" {
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = db
		a.closeStore = db.Close
	} else {
		logger.Warn(ctx, "no store path configured, results will not be persisted")
		a.store = store.NewMemory()
	}

	provider, err := agent.NewLangChainProvider(cfg.Provider.BaseURL, cfg.Provider.APIKey)
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	runner := agent.NewRunner(provider, logger.Named("agent"), 0)
	a.orch = orchestrator.New(runner, a.store, cfg.Generation, logger.Named("orchestrator"),
		orchestrator.WithProgressSink(stdoutProgress{}))

	if metricsAddr != "" {
		go serveMetrics(ctx, logger, metricsAddr)
	}
	return a, nil
}

func (a *app) close() {
	if err := a.closeStore(); err != nil {
		a.logger.Error(context.Background(), "closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// stdoutProgress prints progress lines for interactive runs.
type stdoutProgress struct{}

func (stdoutProgress) Progress(_ context.Context, message string) {
	fmt.Printf("==> %s\n", message)
}

// serveMetrics exposes /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, logger *logging.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(ctx, "metrics server failed", zap.Error(err))
	}
}

// openWorkspace opens the repository named by --repo.
func openWorkspace() (*workspace.Workspace, error) {
	ws, err := workspace.Open(repoDir)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoDir, err)
	}
	return ws, nil
}

// repositoryID is the usage-record tag for a workspace.
func repositoryID(ws *workspace.Workspace) string {
	if ws.Organization == "" {
		return ws.Repository
	}
	return ws.Organization + "/" + ws.Repository
}
