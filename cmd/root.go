package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/ptseed/config"
	"github.com/s0up4200/ptseed/downloader"
	"github.com/s0up4200/ptseed/registry"
	"github.com/s0up4200/ptseed/seeder"
	"github.com/s0up4200/ptseed/site"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger

	appVersion   = "dev"
	appBuildTime = "unknown"
)

// SetVersion is called from main with build-time version information.
func SetVersion(version, buildTime string) {
	appVersion = version
	appBuildTime = buildTime
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ptseed",
	Short: "Seeding lifecycle manager for private trackers",
	Long: `ptseed automates the seeding lifecycle on a private tracker: it builds
and uploads torrents, hands them to a download client, and reconciles the
seeding pool against ratio, seed-time, count, and disk bounds on a fixed
interval.`,
	PersistentPreRunE: initializeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeApp loads the configuration and sets up the logger. Clients are
// built per command so read-only commands never touch the network.
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// buildManager wires the downloader adapter, site session, registry, and
// lifecycle manager from the loaded configuration. The caller owns closing
// the returned registry.
func buildManager() (*seeder.Manager, *registry.Registry, error) {
	adapter, err := downloader.New(cfg.Downloader, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create downloader client: %w", err)
	}

	session, err := site.NewClient(cfg.Site, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create site client: %w", err)
	}

	reg, err := registry.Open(cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open registry: %w", err)
	}

	manager, err := seeder.New(adapter, reg, session, *cfg, logger)
	if err != nil {
		_ = reg.Close()
		return nil, nil, err
	}

	return manager, reg, nil
}
