package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schmug/scubascore/internal/server"
)

var (
	serveAddr           string
	serveDB             string
	serveWeights        string
	serveServiceWeights string
	serveCompensating   string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", "scubascore.db", "Path to score history database")
	serveCmd.Flags().StringVarP(&serveWeights, "weights", "w", "", "Path to rule weights YAML")
	serveCmd.Flags().StringVarP(&serveServiceWeights, "service-weights", "s", "", "Path to service weights YAML")
	serveCmd.Flags().StringVarP(&serveCompensating, "compensating", "c", "", "Path to compensating controls YAML")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard and scoring API",
	Long: "Serves the score history dashboard and the HTTP scoring API.\n" +
		"Weight and compensating-control files are hot-reloaded on change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.Config{
		Addr:               serveAddr,
		DBPath:             serveDB,
		WeightsPath:        serveWeights,
		ServiceWeightsPath: serveServiceWeights,
		CompensatingPath:   serveCompensating,
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchPaths := []string{serveWeights, serveServiceWeights, serveCompensating}
	reloader, err := server.NewReloader(srv, watchPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}
	if reloader != nil {
		go reloader.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	fmt.Fprintln(os.Stderr, "\nShutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
