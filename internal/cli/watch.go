package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schmug/scubascore/internal/daemon"
	"github.com/schmug/scubascore/internal/history"
)

var (
	watchDir            string
	watchDB             string
	watchWeights        string
	watchServiceWeights string
	watchCompensating   string
	watchPoll           bool
	watchInterval       time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchDir, "dir", daemon.DefaultAutoloadDir, "Autoload directory to watch")
	watchCmd.Flags().StringVar(&watchDB, "db", "scubascore.db", "Path to score history database")
	watchCmd.Flags().StringVarP(&watchWeights, "weights", "w", "", "Path to rule weights YAML")
	watchCmd.Flags().StringVarP(&watchServiceWeights, "service-weights", "s", "", "Path to service weights YAML")
	watchCmd.Flags().StringVarP(&watchCompensating, "compensating", "c", "", "Path to compensating controls YAML")
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Poll instead of using filesystem notifications")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval (with --poll)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and score dropped scan files",
	Long: "Runs the autoload daemon: scan exports dropped into the watched\n" +
		"directory are scored, saved to history, and moved to processed/.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	store, err := history.Open(watchDB)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	d, err := daemon.New(daemon.Config{
		Dirs: daemon.DirConfig{Autoload: watchDir},
		Paths: daemon.ConfigPaths{
			Weights:        watchWeights,
			ServiceWeights: watchServiceWeights,
			Compensating:   watchCompensating,
		},
		Store:        store,
		PollMode:     watchPoll,
		PollInterval: watchInterval,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nStopping watcher...")
		cancel()
	}()

	fmt.Fprintf(os.Stderr, "watching %s\n", watchDir)
	return d.Run(ctx)
}
