package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planloop/planloop/internal/config"
	"github.com/planloop/planloop/internal/events"
	"github.com/planloop/planloop/internal/logging"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Consume session idle events and drive the loop",
	Long: `Watch the events spool directory for idle-*.json files dropped by the
host and feed each one to the loop controller. Runs until interrupted.`,
	RunE: runWatch,
}

var watchEventsDir string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchEventsDir, "events", "", "events spool directory (default from config)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dir := watchEventsDir
	if dir == "" {
		dir = cfg.Loop.EventsDir
	}

	ctrl, err := newController(cfg, cfg.Plan.Path)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Path, cfg.Logging.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s for idle events (ctrl-c to stop)\n", dir)
	err = events.NewWatcher(dir, ctrl, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
