package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/schmug/scubascore/internal/history"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	Paths        ConfigPaths
	Store        *history.Store
	PollMode     bool
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Daemon watches the autoload directory and scores dropped scan files.
type Daemon struct {
	cfg       Config
	processor *Processor
	logger    *slog.Logger
}

// New creates a daemon with validated configuration.
func New(cfg Config) (*Daemon, error) {
	if cfg.Dirs.Autoload == "" {
		return nil, fmt.Errorf("autoload directory is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Daemon{
		cfg:       cfg,
		processor: NewProcessor(cfg.Dirs, cfg.Paths, cfg.Store, cfg.Logger),
		logger:    cfg.Logger,
	}, nil
}

// Run starts the daemon. Blocks until ctx is cancelled.
// On startup, scores any files already sitting in the autoload directory.
func (d *Daemon) Run(ctx context.Context) error {
	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	// Acquire PID file lock to prevent duplicate instances.
	pidPath := filepath.Join(d.cfg.Dirs.Autoload, "daemon.pid")
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	handler := func(path string) {
		if err := d.processor.Process(ctx, path); err != nil {
			d.logger.Error("autoload processing", "file", filepath.Base(path), "error", err)
		}
	}

	// Score files that were dropped while the daemon was down.
	if err := ScanExisting(d.cfg.Dirs.Autoload, handler); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	if d.cfg.PollMode {
		pw := NewPollWatcher(d.cfg.Dirs.Autoload, handler, d.cfg.PollInterval)
		return pw.Run(ctx)
	}

	w := NewAutoloadWatcher(d.cfg.Dirs.Autoload, handler)
	return w.Run(ctx)
}

// acquirePIDLock writes the current PID to the file and checks for stale locks.
func acquirePIDLock(path string) error {
	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(string(data))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another daemon is running (PID %d)", pid)
				}
			}
		}
		// Stale PID file, remove it.
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0600)
}
