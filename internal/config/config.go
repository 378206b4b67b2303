// Package config loads the core's ambient settings from the environment,
// in the teacher's envOr/Load idiom (danielloader-oci-pull-through's
// internal/config.Config): every field has a sane default, and the
// process never fails to start just because a variable is unset.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the core's ambient stack (logging, the DNS
// resolver's worker pool, the cookie policy file, the helper-process
// daemon address, the HTTP dial timeout) needs at startup. Other
// fetch-pipeline behavior — redirect depth, huge-file thresholds — stays
// at the package defaults spec.md §4 fixes; this struct only covers what
// genuinely varies per deployment.
type Config struct {
	LogLevel slog.Level

	ResolverWorkers int
	DialTimeout     time.Duration

	CookiePolicyPath string // empty means ACCEPT everything, no deny/ask rules

	HelperAddr string // dpip helper daemon address, e.g. "127.0.0.1:8010"
	HelperKey  string

	UserAgent string
}

// Load reads Config from the environment, falling back to defaults for
// anything unset.
func Load() Config {
	workers, _ := strconv.Atoi(envOr("DUSKCORE_RESOLVER_WORKERS", "4"))
	if workers < 1 {
		workers = 1
	}
	dialTimeoutMS, _ := strconv.Atoi(envOr("DUSKCORE_DIAL_TIMEOUT_MS", "10000"))

	return Config{
		LogLevel:         parseLogLevel(envOr("DUSKCORE_LOG_LEVEL", "info")),
		ResolverWorkers:  workers,
		DialTimeout:      time.Duration(dialTimeoutMS) * time.Millisecond,
		CookiePolicyPath: os.Getenv("DUSKCORE_COOKIE_POLICY"),
		HelperAddr:       envOr("DUSKCORE_HELPER_ADDR", "127.0.0.1:8010"),
		HelperKey:        os.Getenv("DUSKCORE_HELPER_KEY"),
		UserAgent:        envOr("DUSKCORE_USER_AGENT", "duskcore/1.0"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
