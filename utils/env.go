// utils/env.go
package utils

import (
	"log"
	"os"
	"strconv"
	"time"
)

// EnvDuration reads a duration from the environment, falling back to def
// when unset or unparseable.
func EnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, raw, def)
		return def
	}
	return d
}

// EnvInt64 reads an integer from the environment, falling back to def when
// unset or unparseable.
func EnvInt64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return n
}
