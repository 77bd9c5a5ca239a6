// Package main provides the oncodoc CLI for ingesting and querying medical reports.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/oncodoc/internal/app"
	"github.com/bull/oncodoc/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "oncodoc",
	Short: "Medical report processing and case search",
	Long: `CLI tool for processing oncology reports (blood counts, PET/CT imaging,
pathology) into structured findings, clinical alerts and summaries, and for
querying the stored reports.

Environment variables:
  STORE_BACKEND        qdrant, sqlite or memory (default: qdrant)
  QDRANT_HOST          Qdrant hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  SQLITE_PATH          Database file for the sqlite backend
  OPENAI_API_KEY       OpenAI API key for embeddings (optional, offline fallback without it)
  EMBEDDING_DIMENSION  Vector dimension (default: 1536)
  GITHUB_TOKEN         GitHub token for higher rate limits (optional)
  LOG_LEVEL            debug, info, warn or error (default: info)`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openApp loads configuration and wires the components. Logs go to stderr
// so command output on stdout stays machine-readable.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(os.Stderr, cfg)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
