package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mjournal/internal/ai"
	"github.com/xxxsen/mjournal/internal/config"
	"github.com/xxxsen/mjournal/internal/embedcache"
	"github.com/xxxsen/mjournal/internal/journal"
	"github.com/xxxsen/mjournal/internal/search"
	"github.com/xxxsen/mjournal/internal/vectorindex"
)

// app holds the long-lived services of one process.
type app struct {
	cfg     *config.Config
	gateway *ai.Gateway
	index   *vectorindex.Index
	store   *journal.Store
	search  *search.Service
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(ctx).Debug("config loaded", zap.String("config", configPath))

	gateway, err := ai.NewGateway(ctx, cfg.Embedding, ai.WithRemoteWrapper(func(e ai.IEmbedder) ai.IEmbedder {
		return embedcache.WrapLruCacheToEmbedder(e, cfg.Embedding.CacheSize, time.Duration(cfg.Embedding.CacheTTLSeconds)*time.Second)
	}))
	if err != nil {
		return nil, fmt.Errorf("init embedding gateway: %w", err)
	}
	layout, err := journal.NewLayout(cfg, "", "")
	if err != nil {
		return nil, err
	}
	backend, err := vectorindex.NewBackend(cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	index := vectorindex.New(backend, gateway)
	store := journal.NewStore(layout, index)
	logutil.GetLogger(ctx).Debug("services ready",
		zap.String("provider", gateway.Provider()),
		zap.Int("dimension", gateway.Dimension()),
		zap.String("index", backend.Type()),
		zap.String("project_root", layout.ProjectRoot),
		zap.String("user_root", layout.UserRoot),
	)
	return &app{
		cfg:     cfg,
		gateway: gateway,
		index:   index,
		store:   store,
		search:  search.NewService(index, store, cfg.Search.OverFetchFactor),
	}, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
