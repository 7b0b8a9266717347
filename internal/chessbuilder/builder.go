package chessbuilder

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-engine/internal/cache"
	corechess "github.com/park285/cheese-engine/internal/chess"
	"github.com/park285/cheese-engine/internal/chess/openingbook"
	"github.com/park285/cheese-engine/internal/config"
)

type Deps struct {
	Engine        *corechess.Engine
	Cache         *cache.CacheService
	Book          *openingbook.Book
	DefaultPreset string
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.PresetsFile != "" {
		if err := corechess.LoadPresetFile(cfg.PresetsFile); err != nil {
			return nil, err
		}
	}
	if err := applyPresetOverrides(cfg); err != nil {
		return nil, err
	}

	engineCfg := corechess.EngineConfig{
		Pool: corechess.PoolConfig{
			PerPresetCapacity: cfg.PoolCapacity,
			HashMBOverride:    cfg.HashMB,
			ThreadsOverride:   cfg.Threads,
		},
		CacheTTL: cfg.AnalysisCacheTTL,
		Opening:  corechess.OpeningOptions{MaxPly: cfg.OpeningMaxPly, MinWeight: cfg.OpeningMinWeight},
		Logger:   logger,
	}
	deps := &Deps{DefaultPreset: cfg.DefaultPreset}

	// Cache (Redis optional)
	if cfg.RedisURL != "" {
		cconf, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		cconf.KeyPrefix = "cheese:"
		deps.Cache, err = cache.NewCacheService(*cconf, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		engineCfg.Cache = deps.Cache
	} else {
		logger.Info("analysis cache disabled: REDIS_URL not set")
	}

	bookPath := cfg.PolyglotBookPath
	if bookPath == "" {
		var err error
		if bookPath, err = openingbook.ResolveBookPath(); err != nil {
			logger.Warn("opening book unavailable", zap.Error(err))
		}
	}
	if bookPath != "" {
		book, err := openingbook.Open(bookPath)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("init opening book: %w", err)
		}
		deps.Book = book
		engineCfg.Book = book
		logger.Info("opening book loaded", zap.String("path", bookPath))
	}

	deps.Engine = corechess.NewEngine(engineCfg)
	return deps, nil
}

// applyPresetOverrides folds the SEARCH_* limits into the default preset.
func applyPresetOverrides(cfg *config.AppConfig) error {
	if cfg.MoveTimeMS == 0 && cfg.MaxDepth == 0 && cfg.QuiescenceDepth == 0 {
		return nil
	}
	p, err := corechess.GetPreset(cfg.DefaultPreset)
	if err != nil {
		return err
	}
	if cfg.MoveTimeMS > 0 {
		p.MoveTimeMillis = cfg.MoveTimeMS
	}
	if cfg.MaxDepth > 0 {
		p.DepthCap = cfg.MaxDepth
	}
	if cfg.QuiescenceDepth > 0 {
		p.QuiescenceDepth = cfg.QuiescenceDepth
	}
	return corechess.RegisterPreset(p)
}

func (d *Deps) Close() error {
	var first error
	if d.Engine != nil {
		first = d.Engine.Close()
	}
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func parseRedisURL(raw string) (*cache.CacheConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		portStr = "6379"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	db := 0
	if u.Path != "" {
		p := strings.TrimPrefix(u.Path, "/")
		if p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				db = n
			}
		}
	}
	pass, _ := u.User.Password()
	return &cache.CacheConfig{Host: host, Port: port, Password: pass, DB: db}, nil
}
