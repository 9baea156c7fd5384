package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

var (
	analyzeOutput string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run one telemetry batch through the pipeline",
	Long: `Analyze a telemetry batch file (CSV, JSON or JSONL) and print the
resulting incident report as JSON. Use '-' to read from stdin.

Examples:
  # Analyze a CSV export
  incident-triage analyze alerts.csv

  # Read JSONL from stdin, write the report to a file
  cat alerts.jsonl | incident-triage analyze - -o report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write the report to this file instead of stdout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := log.New(os.Stderr, "[analyze] ", log.LstdFlags)

	inputPath := args[0]
	var (
		body []byte
		name string
		err  error
	)
	if inputPath == "-" {
		body, err = io.ReadAll(os.Stdin)
		name = "stdin"
	} else {
		body, err = os.ReadFile(inputPath)
		name = filepath.Base(inputPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	format, err := telemetry.DetectFormat(name, body)
	if err != nil {
		return err
	}
	rows, err := telemetry.ReadBatch(format, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("failed to parse %s input: %w", format, err)
	}
	logger.Printf("read %d rows from %s (%s)", len(rows), name, format)

	pipe, closeLookup, err := buildPipeline(config, logger)
	if err != nil {
		return err
	}
	defer closeLookup()

	rep, err := pipe.Run(ctx, rows)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if analyzeOutput == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(analyzeOutput, append(out, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Printf("report written to %s", analyzeOutput)
	return nil
}
