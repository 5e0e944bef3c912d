package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/schmug/scubascore/internal/history"
)

func testProcessor(t *testing.T) (*Processor, DirConfig, *history.Store) {
	t.Helper()
	root := t.TempDir()
	dirs := DirConfig{Autoload: filepath.Join(root, "autoload")}
	if err := EnsureDirs(dirs); err != nil {
		t.Fatal(err)
	}
	store, err := history.Open(filepath.Join(root, "scores.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	p := NewProcessor(dirs, ConfigPaths{}, store, nil)
	p.timeNow = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC) }
	return p, dirs, store
}

func dropFile(t *testing.T, dirs DirConfig, name, content string) string {
	t.Helper()
	path := filepath.Join(dirs.Autoload, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessScoresAndMoves(t *testing.T) {
	p, dirs, store := testProcessor(t)
	path := dropFile(t, dirs, "scan.json", `{"rules": [{"rule_id": "gws.gmail.1.1", "verdict": "pass"}]}`)

	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("source file should be moved out of autoload")
	}
	moved := filepath.Join(dirs.ProcessedDir(), "20260301-123045_scan.json")
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("expected processed file at %s: %v", moved, err)
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d history entries, want 1", len(entries))
	}
	if entries[0].OverallScore == nil || *entries[0].OverallScore != 100.0 {
		t.Errorf("OverallScore = %v, want 100", entries[0].OverallScore)
	}
}

func TestProcessQuarantinesBadFile(t *testing.T) {
	p, dirs, store := testProcessor(t)
	path := dropFile(t, dirs, "broken.json", "{not json")

	if err := p.Process(context.Background(), path); err == nil {
		t.Fatal("expected error for unparseable file")
	}

	quarantined := filepath.Join(dirs.ProcessedDir(), "ERROR_broken.json")
	if _, err := os.Stat(quarantined); err != nil {
		t.Errorf("expected quarantined file at %s: %v", quarantined, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("bad file should not stay in autoload")
	}

	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d history entries, want none for a failed drop", len(entries))
	}
}

func TestProcessRejectsSymlink(t *testing.T) {
	p, dirs, _ := testProcessor(t)
	target := dropFile(t, dirs, "real.json", `[]`)
	link := filepath.Join(dirs.Autoload, "link.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := p.Process(context.Background(), link); err == nil {
		t.Fatal("expected error for symlinked drop")
	}
	if _, err := os.Stat(filepath.Join(dirs.ProcessedDir(), "ERROR_link.json")); err != nil {
		t.Error("symlink should be quarantined")
	}
}

func TestProcessBadWeightsConfig(t *testing.T) {
	p, dirs, _ := testProcessor(t)
	weightsPath := filepath.Join(dirs.Autoload, "weights.yaml")
	if err := os.WriteFile(weightsPath, []byte("gws.gmail: nope\n"), 0600); err != nil {
		t.Fatal(err)
	}
	p.paths = ConfigPaths{Weights: weightsPath}

	path := dropFile(t, dirs, "scan.json", `[]`)
	if err := p.Process(context.Background(), path); err == nil {
		t.Fatal("expected error for invalid weights config")
	}
	if _, err := os.Stat(filepath.Join(dirs.ProcessedDir(), "ERROR_scan.json")); err != nil {
		t.Error("drop should be quarantined when configs cannot load")
	}
}
