package daemon

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// dirPerm is the permission for daemon-managed directories.
const dirPerm = 0750

// DirConfig holds the autoload directory layout. Scan results are dropped
// into Autoload and moved into the processed subdirectory once scored.
type DirConfig struct {
	Autoload string
}

// DefaultAutoloadDir is the drop directory relative to the working
// directory when none is configured.
const DefaultAutoloadDir = "autoload"

// ProcessedDir returns the directory processed files are moved to.
func (d DirConfig) ProcessedDir() string {
	return filepath.Join(d.Autoload, "processed")
}

// EnsureDirs creates the autoload layout. Idempotent.
func EnsureDirs(cfg DirConfig) error {
	for _, dir := range []string{cfg.Autoload, cfg.ProcessedDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// isResultFile returns true for a completed .json drop (not a .tmp partial
// write).
func isResultFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".tmp")
}

// moveFile moves src to dst using os.Rename, falling back to copy + remove
// on EXDEV (the autoload directory may sit on a different filesystem than
// its processed subtree under bind mounts).
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno != syscall.EXDEV {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
