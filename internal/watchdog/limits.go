package watchdog

import (
	"os"
	"strconv"
)

// Default per-stream output caps, in bytes.
const (
	DefaultStdoutMaxBytes = 2048
	DefaultStderrMaxBytes = 2048
)

// Limits holds the output caps the watchdog enforces on the child.
type Limits struct {
	StdoutMaxBytes int
	StderrMaxBytes int
}

// LimitsFromEnv reads the caps from OUTPUT_LIMIT_STDOUT_BYTES and
// OUTPUT_LIMIT_STDERR_BYTES, falling back to the defaults.
func LimitsFromEnv() Limits {
	return Limits{
		StdoutMaxBytes: envBytes("OUTPUT_LIMIT_STDOUT_BYTES", DefaultStdoutMaxBytes),
		StderrMaxBytes: envBytes("OUTPUT_LIMIT_STDERR_BYTES", DefaultStderrMaxBytes),
	}
}

func envBytes(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
