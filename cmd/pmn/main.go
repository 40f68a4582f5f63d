package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/A78Z/pmn-marches-publics/internal/app"
	"github.com/A78Z/pmn-marches-publics/internal/config"
	"github.com/A78Z/pmn-marches-publics/internal/logging"
)

var (
	cfg        config.Config
	logger     *slog.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "pmn",
	Short:         "Public tender watcher for marchespublics.sn",
	Long:          "Scrapes marchespublics.sn, routes each tender to a business module and alerts subscribed artisans.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (defaults to $PMN_CONFIG)")
}

// openApp builds the application; callers must Close it.
func openApp(ctx context.Context) (*app.Application, error) {
	return app.New(ctx, cfg, logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
