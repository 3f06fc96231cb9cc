package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/media1take/Telegram-hosting/internal/platform/privacylog"
)

type Config struct {
	Level  string // debug|info|warn|error
	Format string // json|text
	File   string // optional; rotated by lumberjack
}

// New builds the service logger. Every handler is wrapped by privacylog so
// Telegram credentials never reach the sink.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, Writer(cfg))
}

// NewWithWriter is New with an explicit sink, so slog and zap can share one
// rotating file.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(privacylog.WrapHandler(handler))
}

// Writer returns stdout, or a size-rotated file when cfg.File is set.
func Writer(cfg Config) io.Writer {
	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}
}

// NewZap builds the logger handed to the gotd client, which only accepts zap.
// It shares level and sink with the slog logger.
func NewZap(cfg Config, w io.Writer) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		zapLevel(parseLevel(cfg.Level)),
	)
	return zap.New(core)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
