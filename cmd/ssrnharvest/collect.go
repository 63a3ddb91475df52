package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-ssrn/models"
	"github.com/aluiziolira/go-scrape-ssrn/scraper"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect paper metadata for a JEL classification code",
	Long: `Collect walks the paginated SSRN listing for a JEL classification code,
extracts one record per listed paper, and writes the accumulated sequence
to a timestamped JSON document in the output directory.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().String("code", "", "JEL classification code (e.g. J14)")
	collectCmd.Flags().Int("max-pages", 0, "maximum listing pages to fetch (0 = all discovered pages)")
	collectCmd.Flags().Duration("page-delay", 0, "pause between listing pages (default 1s)")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	code, _ := cmd.Flags().GetString("code")
	if code == "" {
		code = cfg.JELCode
	}
	if code == "" {
		return fmt.Errorf("provide a JEL classification code via --code")
	}
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	if cmd.Flags().Changed("page-delay") {
		cfg.PageDelay, _ = cmd.Flags().GetDuration("page-delay")
	}

	c, err := scraper.NewCollector(cfg)
	if err != nil {
		return fmt.Errorf("initialising collector: %w", err)
	}

	stopMetrics := startMetricsServer(cfg.MetricsAddr, c.Metrics.Registry)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := c.Collect(ctx, code, maxPages)
	if result != nil {
		printCollectSummary(result)
	}
	return err
}

func printCollectSummary(result *models.CollectResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Collection complete")
	fmt.Printf("  Papers:        %d\n", len(result.Papers))
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if result.Duplicates > 0 {
		fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	if result.OutputFile != "" {
		fmt.Printf("  Output file:   %s\n", result.OutputFile)
	}
	fmt.Println(separator)
}
