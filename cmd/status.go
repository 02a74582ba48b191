package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/ptseed/policy"
	"github.com/s0up4200/ptseed/registry"
)

var stateFilter string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the registry's view of the seeding pool",
	Long: `Display tracked torrents and pool totals from the registry. This is a
read-only snapshot of the last tick; it does not contact the downloader.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&stateFilter, "state", "", "only show torrents in this state (pending/seeding/eligible_for_removal/removed/failed)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()

	ctx := context.Background()

	var records []*registry.Record
	if stateFilter != "" {
		records, err = reg.ByState(ctx, registry.State(stateFilter))
	} else {
		records, err = reg.ByState(ctx,
			registry.StatePending,
			registry.StateSeeding,
			registry.StateEligible,
			registry.StateFailed,
		)
	}
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No tracked torrents.")
		return nil
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-42s %-22s %-10s %8s %10s\n", "NAME", "STATE", "CLASS", "RATIO", "SEED DAYS")
	fmt.Println(strings.Repeat("-", 100))

	for _, rec := range records {
		name := rec.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Printf("%-42s %-22s %-10s %8.2f %10.1f\n",
			name, rec.State, rec.Classification, rec.Ratio, policy.SeedingDays(rec.SeedTime))
		if rec.LastError != "" {
			fmt.Printf("  last error: %s\n", rec.LastError)
		}
	}
	fmt.Println(strings.Repeat("-", 100))

	pool, err := reg.Aggregate(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Printf("Seeding: %d", pool.SeedingCount)
	if cfg.Seeding.MaxTorrents > 0 {
		fmt.Printf("/%d", cfg.Seeding.MaxTorrents)
	}
	fmt.Printf("  Disk: %.2f GB", float64(pool.DiskUsed)/(1024*1024*1024))
	if cfg.Seeding.MaxDiskUsageGB > 0 {
		fmt.Printf("/%.0f GB", cfg.Seeding.MaxDiskUsageGB)
	}
	fmt.Println()

	return nil
}
