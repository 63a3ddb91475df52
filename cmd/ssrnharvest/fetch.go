package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-ssrn/fetcher"
	"github.com/aluiziolira/go-scrape-ssrn/models"
	"github.com/aluiziolira/go-scrape-ssrn/storage"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch INPUT",
	Short: "Fetch abstracts for papers in a listing document",
	Long: `Fetch consumes a listing document produced by collect, downloads each
paper's detail page with polite randomized delays, and extracts the
abstract text. Results are written to {input}_with_abstracts.json and
checkpointed throughout the run; papers that still fail after retries are
written to {input}_failed_papers.json.

A previous results document passed via --resume seeds the set of abstract
ids that are skipped during the retry sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("resume", "r", "", "previous results document used to skip already fetched ids")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	inputPath := args[0]
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file %q not found", inputPath)
	}

	resume := make(map[string]struct{})
	if resumePath, _ := cmd.Flags().GetString("resume"); resumePath != "" {
		if _, err := os.Stat(resumePath); err != nil {
			return fmt.Errorf("resume file %q not found", resumePath)
		}
		resume, err = storage.LoadResultIDs(resumePath)
		if err != nil {
			return err
		}
	}

	f, err := fetcher.NewFetcher(cfg, resume)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}

	stopMetrics := startMetricsServer(cfg.MetricsAddr, f.Metrics.Registry)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := f.Run(ctx, inputPath)
	if result != nil {
		printFetchSummary(result)
	}
	return err
}

func printFetchSummary(result *models.FetchResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Fetch complete")
	fmt.Printf("  Abstracts:     %d\n", result.Succeeded)
	fmt.Printf("  Failed:        %d\n", result.Failed)
	fmt.Printf("  Skipped:       %d\n", result.Skipped)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	if result.OutputFile != "" {
		fmt.Printf("  Results file:  %s\n", result.OutputFile)
	}
	if result.FailedFile != "" {
		fmt.Printf("  Failed file:   %s\n", result.FailedFile)
	}
	fmt.Println(separator)
}
