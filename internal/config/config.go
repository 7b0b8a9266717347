package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	DefaultPreset string
	// HashMB overrides every preset's table size; 0 keeps the presets.
	HashMB          int
	Threads         int
	MoveTimeMS      int
	MaxDepth        int
	QuiescenceDepth int
	PoolCapacity    int
	PresetsFile     string

	RedisURL         string
	AnalysisCacheTTL time.Duration

	PolyglotBookPath string
	OpeningMaxPly    int
	OpeningMinWeight int
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		DefaultPreset:    "level5",
		AnalysisCacheTTL: 24 * time.Hour,
		OpeningMaxPly:    12,
		OpeningMinWeight: 1,
	}

	if v := strings.TrimSpace(os.Getenv("SEARCH_DEFAULT_PRESET")); v != "" {
		cfg.DefaultPreset = strings.ToLower(v)
	}

	ints := []struct {
		env string
		dst *int
		min int
	}{
		{"SEARCH_HASH_MB", &cfg.HashMB, 0},
		{"SEARCH_THREADS", &cfg.Threads, 0},
		{"SEARCH_MOVE_TIME_MS", &cfg.MoveTimeMS, 0},
		{"SEARCH_MAX_DEPTH", &cfg.MaxDepth, 0},
		{"SEARCH_QUIESCENCE_DEPTH", &cfg.QuiescenceDepth, 0},
		{"SEARCH_POOL_CAPACITY", &cfg.PoolCapacity, 0},
		{"CHESS_OPENING_MAX_PLY", &cfg.OpeningMaxPly, 1},
		{"CHESS_OPENING_MIN_WEIGHT", &cfg.OpeningMinWeight, 1},
	}
	for _, it := range ints {
		v := strings.TrimSpace(os.Getenv(it.env))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", it.env, err)
		}
		if n < it.min {
			return nil, fmt.Errorf("%s must be >= %d: %d", it.env, it.min, n)
		}
		*it.dst = n
	}

	cfg.PresetsFile = strings.TrimSpace(os.Getenv("SEARCH_PRESETS_FILE"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.PolyglotBookPath = strings.TrimSpace(os.Getenv("CHESS_POLYGLOT_BOOK_PATH"))

	if v := strings.TrimSpace(os.Getenv("ANALYSIS_CACHE_TTL_SEC")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ANALYSIS_CACHE_TTL_SEC: %w", err)
		}
		if n < 0 {
			return nil, errors.New("ANALYSIS_CACHE_TTL_SEC must not be negative")
		}
		cfg.AnalysisCacheTTL = time.Duration(n) * time.Second
	}

	if cfg.RedisURL != "" && !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
		return nil, fmt.Errorf("REDIS_URL must use redis:// or rediss://: %s", cfg.RedisURL)
	}

	return cfg, nil
}
