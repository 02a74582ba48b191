package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/s0up4200/ptseed/metrics"
)

var lockPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the seeding lifecycle control loop",
	Long: `Start the control loop: reconcile registry state against a live
downloader snapshot, then tick on the configured interval until
interrupted. A lock file prevents concurrent instances.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&lockPath, "lock", "", "lock file path (default is next to the registry database)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager, reg, err := buildManager()
	if err != nil {
		return err
	}
	defer reg.Close()

	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.Listen)
		logger.Info().Str("listen", cfg.Metrics.Listen).Msg("Metrics endpoint started")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if lockPath == "" {
		lockPath = filepath.Join(filepath.Dir(cfg.Database.Name), "ptseed.lock")
	}

	return manager.Run(ctx, lockPath)
}
