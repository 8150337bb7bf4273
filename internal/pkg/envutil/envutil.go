// Package envutil reads configuration from the environment with typed
// fallbacks. A nil logger silences the fallback notices; secrets are read
// with a nil logger so their keys never reach the logs.
package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

func GetEnv(key, def string, log *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		if log != nil && def != "" {
			log.Debug("env var unset, using default", "key", key, "default", def)
		}
		return def
	}
	return v
}

func GetEnvAsInt(key string, def int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("env var is not an integer, using default", "key", key, "value", v, "default", def)
		}
		return def
	}
	return i
}

func GetEnvAsBool(key string, def bool, log *logger.Logger) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		if log != nil {
			log.Warn("env var is not a boolean, using default", "key", key, "value", v, "default", def)
		}
		return def
	}
	return b
}
