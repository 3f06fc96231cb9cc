package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const envPrefix = "TGHUB_"

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// process environment without overriding variables that are already set.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func ApplyEnvOverrides(cfg *Config) error {
	if v := envString("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := envCSV("ALLOWED_ORIGINS"); v != nil {
		cfg.HTTP.AllowedOrigins = v
	}
	cfg.HTTP.RateLimitRPS = envFloatWithFallback("RATE_LIMIT_RPS", cfg.HTTP.RateLimitRPS)
	cfg.HTTP.RateLimitBurst = envIntWithFallback("RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst)
	cfg.HTTP.StreamsGlobal = envIntWithFallback("STREAMS_GLOBAL", cfg.HTTP.StreamsGlobal)
	cfg.HTTP.StreamsPerClient = envIntWithFallback("STREAMS_PER_CLIENT", cfg.HTTP.StreamsPerClient)

	if raw := envString("APP_ID"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%sAPP_ID: %w", envPrefix, err)
		}
		cfg.Telegram.AppID = id
	}
	if v := envString("APP_HASH"); v != "" {
		cfg.Telegram.AppHash = v
	}
	if v := envString("PHONE"); v != "" {
		cfg.Telegram.Phone = v
	}
	if v := envString("PASSWORD"); v != "" {
		cfg.Telegram.Password = v
	}
	if v := envString("BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := envString("SESSION_PATH"); v != "" {
		cfg.Telegram.SessionPath = v
	}
	if v := envString("PEER_DB_PATH"); v != "" {
		cfg.Telegram.PeerDBPath = v
	}
	if v := envString("PROXY"); v != "" {
		cfg.Telegram.Proxy = v
	}

	if raw := envString("CHANNELS"); raw != "" {
		channels, err := ParseChannelList(raw)
		if err != nil {
			return fmt.Errorf("%sCHANNELS: %w", envPrefix, err)
		}
		cfg.Channels = channels
	}
	if v := envString("DEFAULT_CHANNEL"); v != "" {
		cfg.DefaultChannel = v
	}

	if v := envString("CACHE_KIND"); v != "" {
		cfg.Cache.Kind = strings.ToLower(v)
	}
	cfg.Cache.Size = envIntWithFallback("CACHE_SIZE", cfg.Cache.Size)
	cfg.Stream.BandwidthKBps = envBoundedIntWithFallback("STREAM_BANDWIDTH_KBPS", cfg.Stream.BandwidthKBps, 0, 1<<20)

	if v := envString("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := envString("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := envString("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}

// ParseChannelList parses "alias=id[:access_hash],..." as used by TGHUB_CHANNELS.
func ParseChannelList(raw string) ([]ChannelConfig, error) {
	var out []ChannelConfig
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		alias, rest, ok := strings.Cut(item, "=")
		alias = strings.TrimSpace(alias)
		if !ok || alias == "" {
			return nil, fmt.Errorf("channel entry %q: want alias=id", item)
		}
		idPart, hashPart, hasHash := strings.Cut(strings.TrimSpace(rest), ":")
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("channel %q: invalid id: %w", alias, err)
		}
		ch := ChannelConfig{Alias: alias, ID: id}
		if hasHash {
			hash, err := strconv.ParseInt(hashPart, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("channel %q: invalid access hash: %w", alias, err)
			}
			ch.AccessHash = hash
		}
		out = append(out, ch)
	}
	return out, nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envCSV(key string) []string {
	raw := envString(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envIntWithFallback(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloatWithFallback(key string, fallback float64) float64 {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func envBoundedIntWithFallback(key string, fallback, min, max int) int {
	value := envIntWithFallback(key, fallback)
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
