package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bull/oncodoc/internal/casefinder"
	"github.com/bull/oncodoc/internal/indexer"
	"github.com/bull/oncodoc/internal/report"
)

var processFlags struct {
	patient   string
	patientID string
	hint      string
	timestamp string
}

var queryFlags struct {
	patient    string
	reportType string
	limit      int
	minScore   float64
	days       int
}

var processCmd = &cobra.Command{
	Use:   "process <file|->",
	Short: "Process one report and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored reports semantically",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <patient>",
	Short: "List a patient's reports, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runTimeline,
}

var similarCmd = &cobra.Command{
	Use:   "similar <patient>",
	Short: "Find other patients' reports similar to the patient's latest report",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

var contextCmd = &cobra.Command{
	Use:   "context <patient>",
	Short: "Summarize a patient's history with similar cases and insights",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show counts of stored reports",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func init() {
	processCmd.Flags().StringVar(&processFlags.patient, "patient", "", "Patient name (overrides the report header)")
	processCmd.Flags().StringVar(&processFlags.patientID, "patient-id", "", "Patient identifier")
	processCmd.Flags().StringVar(&processFlags.hint, "type", "", "Expected report type")
	processCmd.Flags().StringVar(&processFlags.timestamp, "date", "", "Report date, e.g. 2024-03-01")

	searchCmd.Flags().StringVar(&queryFlags.patient, "patient", "", "Restrict to one patient")
	searchCmd.Flags().Float64Var(&queryFlags.minScore, "min-score", 0, "Minimum similarity (default from SIMILARITY_THRESHOLD)")
	for _, c := range []*cobra.Command{searchCmd, similarCmd} {
		c.Flags().StringVar(&queryFlags.reportType, "type", "", "Restrict to blood_count, imaging or pathology")
		c.Flags().IntVar(&queryFlags.limit, "limit", 0, "Maximum number of results")
	}
	for _, c := range []*cobra.Command{timelineCmd, contextCmd} {
		c.Flags().IntVar(&queryFlags.days, "days", casefinder.DefaultTimelineDays, "Days of history, 0 for all")
	}

	rootCmd.AddCommand(processCmd, searchCmd, timelineCmd, similarCmd, contextCmd, summaryCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	src := indexer.Source{
		Text:           string(data),
		PatientName:    processFlags.patient,
		PatientID:      processFlags.patientID,
		ReportTypeHint: processFlags.hint,
		Timestamp:      processFlags.timestamp,
	}
	if args[0] != "-" {
		src.Source = args[0]
	}
	res, err := a.Pipeline.Process(ctx, src)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reportType, err := reportTypeFlag()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := casefinder.SearchOptions{
		PatientRef: queryFlags.patient,
		ReportType: reportType,
		Limit:      queryFlags.limit,
	}
	if cmd.Flags().Changed("min-score") {
		opts.Threshold = &queryFlags.minScore
	}
	matches, err := a.Finder.Search(ctx, strings.Join(args, " "), opts)
	if err != nil {
		return err
	}
	return printJSON(cmd, matches)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.Finder.Timeline(ctx, args[0], queryFlags.days)
	if err != nil {
		return err
	}
	return printJSON(cmd, entries)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reportType, err := reportTypeFlag()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := a.Finder.SimilarCases(ctx, args[0], reportType, queryFlags.limit)
	if errors.Is(err, casefinder.ErrNoReference) {
		fmt.Fprintf(cmd.ErrOrStderr(), "No recent report found for %s\n", args[0])
		return printJSON(cmd, []casefinder.Match{})
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, matches)
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pc, err := a.Finder.Context(ctx, args[0], queryFlags.days)
	if err != nil {
		return err
	}
	return printJSON(cmd, pc)
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Finder.Summary(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, sum)
}

func reportTypeFlag() (report.ReportType, error) {
	label := strings.ToLower(strings.TrimSpace(queryFlags.reportType))
	if label == "" {
		return "", nil
	}
	rt := report.ParseReportType(label)
	if !rt.Known() {
		return "", fmt.Errorf("unknown report type %q", queryFlags.reportType)
	}
	return rt, nil
}
