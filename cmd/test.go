package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/site"
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connections to the downloader and the site",
	Long:  `Verify that the configured download client and tracker site are reachable and that credentials work.`,
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("Testing connection to %s at %s:%d...\n", cfg.Downloader.Type, cfg.Downloader.Host, cfg.Downloader.Port)
	adapter, err := downloader.New(cfg.Downloader, logger)
	if err != nil {
		return fmt.Errorf("downloader connection failed: %w", err)
	}

	torrents, err := adapter.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list torrents: %w", err)
	}
	fmt.Println("✓ Downloader connection successful!")
	fmt.Printf("- Torrents in category %q: %d\n", cfg.Downloader.Category, len(torrents))

	if free, err := adapter.FreeSpace(ctx); err == nil {
		fmt.Printf("- Free disk space: %.2f GB\n", float64(free)/(1024*1024*1024))
	}

	fmt.Printf("\nTesting connection to site at %s...\n", cfg.Site.URL)
	session, err := site.NewClient(cfg.Site, logger)
	if err != nil {
		return fmt.Errorf("site client setup failed: %w", err)
	}

	if cfg.Site.Cookie != "" {
		fmt.Println("✓ Using configured session cookie")
	} else {
		if err := session.Login(ctx); err != nil {
			return fmt.Errorf("site login failed: %w", err)
		}
		fmt.Println("✓ Site login successful!")
	}

	return nil
}
