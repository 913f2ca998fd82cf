package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/logging"
	"pdfrag/internal/tui"

	"github.com/spf13/cobra"
)

var (
	flagConfig       string
	flagStore        string
	flagBackend      string
	flagOllama       string
	flagModel        string
	flagChunkSize    int
	flagChunkOverlap int
	flagLogLevel     string
)

// errPartial signals a run that completed with per-file or per-chunk
// failures. Its summary has already been printed.
var errPartial = errors.New("completed with failures")

var rootCmd = &cobra.Command{
	Use:           "pdfrag",
	Short:         "Local semantic search over PDF collections",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

// Execute runs the command tree and exits with 0 on success, 2 when a run
// completed with failures and 1 otherwise.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errPartial):
		return 2
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, tui.ErrorStyle.Render("Interrupted"))
		return 1
	default:
		fmt.Fprintln(stderr, tui.ErrorStyle.Render("Error: "+err.Error()))
		return 1
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagConfig, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	f.StringVar(&flagStore, "store", "", "store path (default .pdfrag/store.json, .pdfrag/store.db for sqlite)")
	f.StringVar(&flagBackend, "backend", config.BackendJSON, "store backend: json or sqlite")
	f.StringVar(&flagOllama, "ollama", "http://localhost:11434", "ollama base URL")
	f.StringVar(&flagModel, "model", "nomic-embed-text", "embedding model")
	f.IntVar(&flagChunkSize, "chunk-size", 2000, "chunk size in characters")
	f.IntVar(&flagChunkOverlap, "chunk-overlap", 500, "overlap between consecutive chunks in characters")
	f.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// loadConfig layers flags the user actually set over the file and
// environment configuration.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.StorePath = flagStore
	}
	if flags.Changed("backend") {
		cfg.Backend = flagBackend
	}
	if flags.Changed("ollama") {
		cfg.OllamaURL = flagOllama
	}
	if flags.Changed("model") {
		cfg.Model = flagModel
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = flagChunkSize
	}
	if flags.Changed("chunk-overlap") {
		cfg.ChunkOverlap = flagChunkOverlap
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, cfg.Validate()
}

// openApp loads the configuration and opens the store. Logs go to stderr.
func openApp(cmd *cobra.Command) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}
