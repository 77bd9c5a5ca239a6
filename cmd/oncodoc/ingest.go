package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/oncodoc/internal/app"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/source"
)

var ingestFlags struct {
	github string
	path   string
	ref    string
	clear  bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Process every report in a directory or GitHub repository",
	Long: `Lists every supported report (.txt, .md) in the source, processes each one
and stores the results. Reports that fail are listed and do not stop the run.
Re-ingesting the same source replaces its reports instead of duplicating them.

Examples:
  oncodoc ingest ./reports
  oncodoc ingest --github acme/reports --path oncology --ref main`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest a directory, then process reports as they are written",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.github, "github", "", "GitHub repository as owner/repo")
	ingestCmd.Flags().StringVar(&ingestFlags.path, "path", "", "Directory inside the GitHub repository")
	ingestCmd.Flags().StringVar(&ingestFlags.ref, "ref", "", "Branch, tag or commit (default branch when empty)")
	ingestCmd.Flags().BoolVar(&ingestFlags.clear, "clear", false, "Clear the Qdrant collection before ingesting")
	rootCmd.AddCommand(ingestCmd, watchCmd)
}

// collectionClearer is implemented by stores that can drop all reports.
type collectionClearer interface {
	ClearCollection(ctx context.Context) error
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := ingestSource(a, args)
	if err != nil {
		return err
	}

	if ingestFlags.clear {
		clearer, ok := a.Store.(collectionClearer)
		if !ok {
			return fmt.Errorf("--clear is not supported by the %s backend", a.Config.StoreBackend)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Clearing existing collection...")
		if err := clearer.ClearCollection(ctx); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Ingesting reports from %s...\n", src.Name())
	result, err := a.Pipeline.IngestAll(ctx, src)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	printBatch(cmd, result)
	fmt.Fprintf(cmd.ErrOrStderr(), "Total time: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func ingestSource(a *app.App, args []string) (source.Source, error) {
	if ingestFlags.github != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("give either a directory or --github, not both")
		}
		owner, repo, ok := strings.Cut(ingestFlags.github, "/")
		if !ok || owner == "" || repo == "" {
			return nil, fmt.Errorf("--github must be owner/repo, got %q", ingestFlags.github)
		}
		client, err := source.NewGitHubClient(a.Config.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return source.NewGitHubSource(client, source.GitHubRepo{
			Owner:    owner,
			Repo:     repo,
			BasePath: ingestFlags.path,
			Ref:      ingestFlags.ref,
		}), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a directory or --github is required")
	}
	return source.NewLocalDir(args[0])
}

func printBatch(cmd *cobra.Command, result *indexer.BatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Ingest complete!")
	fmt.Fprintf(out, "  Run: %s\n", result.RunID)
	fmt.Fprintf(out, "  Reports: %d/%d\n", result.Succeeded, result.Total)
	fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))
	if result.Revision != "" {
		fmt.Fprintf(out, "  Revision: %s\n", result.Revision)
	}

	if len(result.Failed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed reports:")
		for _, failed := range result.Failed {
			fmt.Fprintf(out, "  - %s: %s\n", failed.Source, failed.Reason)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dir, err := source.NewLocalDir(args[0])
	if err != nil {
		return err
	}

	result, err := a.Pipeline.IngestAll(ctx, dir)
	if err != nil {
		return fmt.Errorf("initial ingest failed: %w", err)
	}
	printBatch(cmd, result)

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for new reports (Ctrl+C to stop)...\n", dir.Root())
	watcher := source.NewWatcher(dir, source.DefaultDebounce, a.Logger)
	return watcher.Run(ctx, func(ctx context.Context, relPath string) {
		src, err := a.Pipeline.Fetch(ctx, dir, relPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				a.Logger.Warn("Skipping report", "path", relPath, "error", err)
			}
			return
		}
		res, err := a.Pipeline.Process(ctx, src)
		if err != nil {
			a.Logger.Error("Failed to process report", "path", relPath, "error", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  alerts=%d\n",
			relPath, res.ReportType, res.DocumentID, len(res.Alerts))
	})
}
