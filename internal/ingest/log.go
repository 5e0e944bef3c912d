package ingest

import (
	"fmt"
	"log/slog"
)

// warnf surfaces a row-level data-quality signal without failing the batch.
func warnf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}

func debugf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}
