package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schmug/scubascore/internal/config"
	"github.com/schmug/scubascore/internal/history"
	"github.com/schmug/scubascore/internal/ingest"
	"github.com/schmug/scubascore/internal/model"
	"github.com/schmug/scubascore/internal/scoring"
)

// ConfigPaths locates the three scoring configuration files. The processor
// re-reads them for every file so edits apply to the next drop without a
// daemon restart.
type ConfigPaths struct {
	Weights        string
	ServiceWeights string
	Compensating   string
}

// Processor scores dropped scan files and records the results.
type Processor struct {
	dirs    DirConfig
	paths   ConfigPaths
	store   *history.Store
	logger  *slog.Logger
	timeNow func() time.Time
}

// NewProcessor creates a processor writing to the given history store.
func NewProcessor(dirs DirConfig, paths ConfigPaths, store *history.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		dirs:    dirs,
		paths:   paths,
		store:   store,
		logger:  logger,
		timeNow: time.Now,
	}
}

// Process handles one dropped file: snapshot configs → parse → score →
// persist → move to processed/. On any failure the file is moved aside
// with an ERROR_ prefix so a bad drop never loops.
func (p *Processor) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)

	// Symlinked drops could point anywhere on the filesystem; refuse them.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat drop file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return p.quarantine(path, name, fmt.Errorf("rejected symlink"))
	}

	p.logger.Info("processing autoload file", "file", name)

	result, err := p.scoreFile(ctx, path)
	if err != nil {
		return p.quarantine(path, name, err)
	}

	if _, err := p.store.Save(ctx, result); err != nil {
		return p.quarantine(path, name, fmt.Errorf("save score: %w", err))
	}

	stamped := p.timeNow().UTC().Format("20060102-150405") + "_" + name
	if err := moveFile(path, filepath.Join(p.dirs.ProcessedDir(), stamped)); err != nil {
		return fmt.Errorf("move processed file: %w", err)
	}

	p.logger.Info("processed autoload file", "file", name, "overall", overallString(result.OverallScore))
	return nil
}

// scoreFile runs the pipeline with a fresh config snapshot.
func (p *Processor) scoreFile(_ context.Context, path string) (model.ScoreResult, error) {
	weights, err := config.LoadWeights(p.paths.Weights)
	if err != nil {
		return model.ScoreResult{}, err
	}
	serviceWeights, err := config.LoadServiceWeights(p.paths.ServiceWeights)
	if err != nil {
		return model.ScoreResult{}, err
	}
	compensating, err := config.LoadCompensating(p.paths.Compensating)
	if err != nil {
		return model.ScoreResult{}, err
	}

	doc, err := ingest.LoadFile(path)
	if err != nil {
		return model.ScoreResult{}, err
	}
	rules, err := ingest.ParseResults(doc, weights, compensating)
	if err != nil {
		return model.ScoreResult{}, err
	}
	return scoring.Compute(rules, serviceWeights), nil
}

// quarantine moves a failed drop aside with an ERROR_ prefix.
func (p *Processor) quarantine(path, name string, cause error) error {
	p.logger.Error("processing failed", "file", name, "error", cause)
	if err := moveFile(path, filepath.Join(p.dirs.ProcessedDir(), "ERROR_"+name)); err != nil {
		return fmt.Errorf("quarantine %s: %w (original error: %v)", name, err, cause)
	}
	return cause
}

func overallString(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
