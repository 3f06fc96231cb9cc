// Package hubserver wires configuration into a runnable API server.
package hubserver

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/media1take/Telegram-hosting/internal/api"
	"github.com/media1take/Telegram-hosting/internal/cache"
	"github.com/media1take/Telegram-hosting/internal/catalog"
	"github.com/media1take/Telegram-hosting/internal/config"
	"github.com/media1take/Telegram-hosting/internal/logging"
	"github.com/media1take/Telegram-hosting/internal/metrics"
	"github.com/media1take/Telegram-hosting/internal/peerstore"
	"github.com/media1take/Telegram-hosting/internal/platform/ratelimiter"
	"github.com/media1take/Telegram-hosting/internal/stream"
	"github.com/media1take/Telegram-hosting/internal/telegram"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

const rateLimitIdleTTL = 10 * time.Minute

// App is the assembled server plus the resources released on exit.
type App struct {
	Server *api.Server
	Logger *slog.Logger

	closers []func() error
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Build(cfg config.Config, version models.VersionInfo) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	sink := logging.Writer(logCfg)
	logger := logging.NewWithWriter(logCfg, sink)
	logInfo, logWarn := logger.Info, logger.Warn
	app := &App{Logger: logger}

	m := metrics.New()
	records, err := cache.New[models.VideoRecord](cfg.Cache.Kind, cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}
	thumbs, err := cache.New[[]byte](cfg.Cache.Kind, cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		return nil, err
	}

	peerPath := strings.TrimSpace(cfg.Telegram.PeerDBPath)
	if peerPath == "" {
		peerPath = filepath.Join(filepath.Dir(cfg.Telegram.SessionPath), "peers.bolt")
	}
	peers, err := peerstore.Open(peerPath)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, peers.Close)

	client, err := telegram.New(telegram.Config{
		AppID:        cfg.Telegram.AppID,
		AppHash:      cfg.Telegram.AppHash,
		Phone:        cfg.Telegram.Phone,
		Password:     cfg.Telegram.Password,
		BotToken:     cfg.Telegram.BotToken,
		SessionPath:  cfg.Telegram.SessionPath,
		Proxy:        cfg.Telegram.Proxy,
		RequestRPS:   cfg.Telegram.RequestRPS,
		RequestBurst: cfg.Telegram.RequestBurst,
		Logger:       logging.NewZap(logCfg, sink).Named("gotd"),
		Peers:        peers,
		LogInfo:      logInfo,
		LogWarn:      logWarn,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	list := make([]catalog.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		list = append(list, catalog.Channel{Alias: ch.Alias, ID: ch.ID, AccessHash: ch.AccessHash})
	}
	channels, err := catalog.NewChannels(list, cfg.DefaultChannel)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	svc := catalog.NewService(channels, client, catalog.Options{
		Scan: catalog.ScanWindows{
			List:      cfg.Scan.List,
			Recent:    cfg.Scan.Recent,
			Swipe:     cfg.Scan.Swipe,
			Search:    cfg.Scan.Search,
			SearchAll: cfg.Scan.SearchAll,
			Stats:     cfg.Scan.Stats,
		},
		Records:    cache.WithObserver(records, m.CacheObserver("records")),
		Thumbnails: cache.WithObserver(thumbs, m.CacheObserver("thumbnails")),
		LogInfo:    logInfo,
		LogWarn:    logWarn,
	})

	streamer := stream.New(stream.Options{
		ChunkSize:     cfg.Stream.ChunkSize,
		RangeWindow:   cfg.Stream.RangeWindow,
		BandwidthKBps: cfg.Stream.BandwidthKBps,
		OnFallback:    func(error) { m.RangeFallback() },
		OnBytes:       m.AddResponseBytes,
		LogWarn:       logWarn,
	})

	app.Server = api.NewServer(svc, streamer, client, api.Options{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
		Limiter:           ratelimiter.New(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, rateLimitIdleTTL),
		StreamsGlobal:     cfg.HTTP.StreamsGlobal,
		StreamsPerClient:  cfg.HTTP.StreamsPerClient,
		Metrics:           m,
		Version:           version,
		Logger:            logger,
	})
	logger.Info("service configured",
		"component", "composition",
		"channels", channels.Aliases(),
		"default_channel", channels.Default(),
		"cache", cfg.Cache.Kind,
		"addr", cfg.HTTP.Addr,
	)
	return app, nil
}
