package config

import (
	"fmt"
	"log/slog"
)

// warnf reports a configuration oddity that is legal but probably a mistake.
func warnf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}
