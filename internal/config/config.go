package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddr       = "127.0.0.1:8000"
	DefaultChannelAlias   = "movies"
	DefaultChunkSize      = 2 * 1024 * 1024
	DefaultRangeWindow    = 2 * 1024 * 1024
	DefaultSessionPath    = "session/session.json"
	DefaultPeerDBPath     = "session/peers.bolt"
	defaultConfigLocation = "configs/config.yaml"
)

type Config struct {
	HTTP           HTTPConfig
	Telegram       TelegramConfig
	Channels       []ChannelConfig
	DefaultChannel string
	Scan           ScanConfig
	Cache          CacheConfig
	Stream         StreamConfig
	Log            LogConfig
}

type HTTPConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	RateLimitRPS      float64
	RateLimitBurst    int
	StreamsGlobal     int
	StreamsPerClient  int
}

type TelegramConfig struct {
	AppID       int
	AppHash     string
	Phone       string
	Password    string
	BotToken    string
	SessionPath string
	PeerDBPath  string
	// Proxy is a SOCKS5 address, optionally with user:pass@ credentials.
	Proxy        string
	RequestRPS   float64
	RequestBurst int
}

type ChannelConfig struct {
	Alias      string `yaml:"alias"`
	ID         int64  `yaml:"id"`
	AccessHash int64  `yaml:"access_hash"`
}

// ScanConfig bounds how many history messages each operation inspects.
type ScanConfig struct {
	List      int
	Recent    int
	Swipe     int
	Search    int
	SearchAll int
	Stats     int
}

type CacheConfig struct {
	Kind string // memory|lru|ttl
	Size int
	TTL  time.Duration
}

type StreamConfig struct {
	ChunkSize     int
	RangeWindow   int64
	BandwidthKBps int
}

type LogConfig struct {
	Level  string // debug|info|warn|error
	Format string // json|text
	File   string
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:              DefaultHTTPAddr,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{"*"},
			RateLimitRPS:      30,
			RateLimitBurst:    60,
			StreamsGlobal:     128,
			StreamsPerClient:  8,
		},
		Telegram: TelegramConfig{
			SessionPath:  DefaultSessionPath,
			PeerDBPath:   DefaultPeerDBPath,
			RequestRPS:   10,
			RequestBurst: 5,
		},
		DefaultChannel: DefaultChannelAlias,
		Scan: ScanConfig{
			List:      500,
			Recent:    100,
			Swipe:     50,
			Search:    700,
			SearchAll: 1000,
			Stats:     200,
		},
		Cache: CacheConfig{
			Kind: "memory",
			Size: 4096,
			TTL:  time.Hour,
		},
		Stream: StreamConfig{
			ChunkSize:   DefaultChunkSize,
			RangeWindow: DefaultRangeWindow,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

type fileConfig struct {
	HTTP           fileHTTPConfig     `yaml:"http"`
	Telegram       fileTelegramConfig `yaml:"telegram"`
	Channels       []ChannelConfig    `yaml:"channels"`
	DefaultChannel string             `yaml:"default_channel"`
	Scan           fileScanConfig     `yaml:"scan"`
	Cache          fileCacheConfig    `yaml:"cache"`
	Stream         fileStreamConfig   `yaml:"stream"`
	Log            fileLogConfig      `yaml:"log"`
}

type fileHTTPConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	RateLimitRPS      *float64      `yaml:"rate_limit_rps"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
	StreamsGlobal     int           `yaml:"streams_global"`
	StreamsPerClient  int           `yaml:"streams_per_client"`
}

type fileTelegramConfig struct {
	AppID        int     `yaml:"app_id"`
	AppHash      string  `yaml:"app_hash"`
	Phone        string  `yaml:"phone"`
	Password     string  `yaml:"password"`
	BotToken     string  `yaml:"bot_token"`
	SessionPath  string  `yaml:"session_path"`
	PeerDBPath   string  `yaml:"peer_db_path"`
	Proxy        string  `yaml:"proxy"`
	RequestRPS   float64 `yaml:"request_rps"`
	RequestBurst int     `yaml:"request_burst"`
}

type fileScanConfig struct {
	List      int `yaml:"list"`
	Recent    int `yaml:"recent"`
	Swipe     int `yaml:"swipe"`
	Search    int `yaml:"search"`
	SearchAll int `yaml:"search_all"`
	Stats     int `yaml:"stats"`
}

type fileCacheConfig struct {
	Kind string        `yaml:"kind"`
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

type fileStreamConfig struct {
	ChunkSize     int   `yaml:"chunk_size"`
	RangeWindow   int64 `yaml:"range_window"`
	BandwidthKBps *int  `yaml:"bandwidth_kbps"`
}

type fileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load reads the YAML file at configPath (or configs/config.yaml when empty),
// merges it over Default and applies TGHUB_* environment overrides. A missing
// default file is not an error; a missing explicit file is.
func Load(configPath string) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(configPath)
	explicit := path != ""
	if !explicit {
		path = defaultConfigLocation
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		merge(&cfg, parsed)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes over Default without touching the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Config{}, err
	}
	merge(&cfg, parsed)
	return cfg, nil
}

func merge(dst *Config, src fileConfig) {
	mergeHTTP(&dst.HTTP, src.HTTP)
	mergeTelegram(&dst.Telegram, src.Telegram)
	if src.Channels != nil {
		dst.Channels = src.Channels
	}
	if src.DefaultChannel != "" {
		dst.DefaultChannel = src.DefaultChannel
	}
	mergeScan(&dst.Scan, src.Scan)
	if src.Cache.Kind != "" {
		dst.Cache.Kind = src.Cache.Kind
	}
	if src.Cache.Size != 0 {
		dst.Cache.Size = src.Cache.Size
	}
	if src.Cache.TTL != 0 {
		dst.Cache.TTL = src.Cache.TTL
	}
	if src.Stream.ChunkSize != 0 {
		dst.Stream.ChunkSize = src.Stream.ChunkSize
	}
	if src.Stream.RangeWindow != 0 {
		dst.Stream.RangeWindow = src.Stream.RangeWindow
	}
	if src.Stream.BandwidthKBps != nil {
		dst.Stream.BandwidthKBps = *src.Stream.BandwidthKBps
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
	if src.Log.File != "" {
		dst.Log.File = src.Log.File
	}
}

func mergeHTTP(dst *HTTPConfig, src fileHTTPConfig) {
	if src.Addr != "" {
		dst.Addr = src.Addr
	}
	if src.ReadHeaderTimeout != 0 {
		dst.ReadHeaderTimeout = src.ReadHeaderTimeout
	}
	if src.IdleTimeout != 0 {
		dst.IdleTimeout = src.IdleTimeout
	}
	if src.ShutdownTimeout != 0 {
		dst.ShutdownTimeout = src.ShutdownTimeout
	}
	if src.AllowedOrigins != nil {
		dst.AllowedOrigins = src.AllowedOrigins
	}
	// rate_limit_rps: 0 disables the limiter, so presence matters.
	if src.RateLimitRPS != nil {
		dst.RateLimitRPS = *src.RateLimitRPS
	}
	if src.RateLimitBurst != 0 {
		dst.RateLimitBurst = src.RateLimitBurst
	}
	if src.StreamsGlobal != 0 {
		dst.StreamsGlobal = src.StreamsGlobal
	}
	if src.StreamsPerClient != 0 {
		dst.StreamsPerClient = src.StreamsPerClient
	}
}

func mergeTelegram(dst *TelegramConfig, src fileTelegramConfig) {
	if src.AppID != 0 {
		dst.AppID = src.AppID
	}
	if src.AppHash != "" {
		dst.AppHash = src.AppHash
	}
	if src.Phone != "" {
		dst.Phone = src.Phone
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.BotToken != "" {
		dst.BotToken = src.BotToken
	}
	if src.SessionPath != "" {
		dst.SessionPath = src.SessionPath
	}
	if src.PeerDBPath != "" {
		dst.PeerDBPath = src.PeerDBPath
	}
	if src.Proxy != "" {
		dst.Proxy = src.Proxy
	}
	if src.RequestRPS != 0 {
		dst.RequestRPS = src.RequestRPS
	}
	if src.RequestBurst != 0 {
		dst.RequestBurst = src.RequestBurst
	}
}

func mergeScan(dst *ScanConfig, src fileScanConfig) {
	if src.List != 0 {
		dst.List = src.List
	}
	if src.Recent != 0 {
		dst.Recent = src.Recent
	}
	if src.Swipe != 0 {
		dst.Swipe = src.Swipe
	}
	if src.Search != 0 {
		dst.Search = src.Search
	}
	if src.SearchAll != 0 {
		dst.SearchAll = src.SearchAll
	}
	if src.Stats != 0 {
		dst.Stats = src.Stats
	}
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Telegram.AppID <= 0 {
		errs = append(errs, errors.New("telegram.app_id is required"))
	}
	if strings.TrimSpace(c.Telegram.AppHash) == "" {
		errs = append(errs, errors.New("telegram.app_hash is required"))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel must be configured"))
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		alias := strings.TrimSpace(ch.Alias)
		if alias == "" {
			errs = append(errs, errors.New("channel alias must not be empty"))
			continue
		}
		if ch.ID == 0 {
			errs = append(errs, fmt.Errorf("channel %q: id is required", alias))
		}
		if _, dup := seen[alias]; dup {
			errs = append(errs, fmt.Errorf("channel %q: duplicate alias", alias))
		}
		seen[alias] = struct{}{}
	}
	if _, ok := seen[c.DefaultChannel]; len(c.Channels) > 0 && !ok {
		errs = append(errs, fmt.Errorf("default_channel %q is not configured", c.DefaultChannel))
	}
	switch c.Cache.Kind {
	case "memory", "lru", "ttl":
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q must be memory, lru or ttl", c.Cache.Kind))
	}
	if c.Stream.ChunkSize <= 0 || c.Stream.RangeWindow <= 0 {
		errs = append(errs, errors.New("stream.chunk_size and stream.range_window must be positive"))
	}
	return errors.Join(errs...)
}
