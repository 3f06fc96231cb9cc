package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/media1take/Telegram-hosting/internal/catalog"
	"github.com/media1take/Telegram-hosting/internal/metrics"
	"github.com/media1take/Telegram-hosting/internal/platform/ratelimiter"
	"github.com/media1take/Telegram-hosting/internal/stream"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

const (
	DefaultAddr            = "127.0.0.1:8000"
	defaultShutdownTimeout = 5 * time.Second
)

// Upstream is the lifecycle of the connection the catalog reads from.
type Upstream interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string

	// Limiter throttles requests per client; nil disables it.
	Limiter          *ratelimiter.MapLimiter
	StreamsGlobal    int
	StreamsPerClient int

	Metrics *metrics.Metrics
	Version models.VersionInfo
	Logger  *slog.Logger
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler

	catalog  *catalog.Service
	streamer *stream.Streamer
	upstream Upstream

	allowAnyOrigin  bool
	allowedOrigins  map[string]bool
	limiter         *ratelimiter.MapLimiter
	streams         *streamLimiter
	metrics         *metrics.Metrics
	version         models.VersionInfo
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// streamCtx is cancelled when shutdown begins so open streams end.
	streamCtx   context.Context
	stopStreams context.CancelFunc
}

func NewServer(svc *catalog.Service, streamer *stream.Streamer, upstream Upstream, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if streamer == nil {
		streamer = stream.New(stream.Options{})
	}

	s := &Server{
		catalog:         svc,
		streamer:        streamer,
		upstream:        upstream,
		allowedOrigins:  make(map[string]bool),
		limiter:         opts.Limiter,
		streams:         newStreamLimiter(opts.StreamsGlobal, opts.StreamsPerClient),
		metrics:         opts.Metrics,
		version:         opts.Version,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          opts.Logger,
	}
	s.streamCtx, s.stopStreams = context.WithCancel(context.Background())
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			s.allowAnyOrigin = true
			continue
		}
		if origin != "" {
			s.allowedOrigins[origin] = true
		}
	}

	mux := http.NewServeMux()
	s.handle(mux, "/health", s.handleHealth, false)
	s.handle(mux, "/channels", s.handleChannels, true)
	s.handle(mux, "/stats", s.handleStats, true)
	s.handle(mux, "/videos", s.handleVideos, true)
	s.handle(mux, "/recent", s.handleRecent, true)
	s.handle(mux, "/swipe", s.handleSwipe, true)
	s.handle(mux, "/search", s.handleSearch, true)
	s.handle(mux, "/search_all", s.handleSearchAll, true)
	s.handle(mux, "/video/{id}", s.handleVideo, true)
	s.handle(mux, "/thumbnail/{id}", s.handleThumbnail, true)
	s.handle(mux, "/stream/{id}", s.handleStream, true)
	s.handle(mux, "/download/{id}", s.handleDownload, true)
	s.handle(mux, "/playlist.m3u", s.handlePlaylist, true)
	s.handle(mux, "/version", s.handleVersion, false)
	if s.metrics != nil {
		s.handle(mux, "/metrics", s.metrics.Handler().ServeHTTP, false)
	}

	s.handler = withRequestID(mux)
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc, limited bool) {
	var next http.Handler = h
	if limited {
		next = s.rateLimit(next)
	}
	mux.Handle(route, s.instrument(route, s.cors(next)))
}

// Handler serves the API without binding a listener.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the upstream, serves until ctx is cancelled, then shuts down
// HTTP before the upstream.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	if s.upstream != nil {
		if err := s.upstream.Start(ctx); err != nil {
			_ = ln.Close()
			return err
		}
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "component", "api", "addr", ln.Addr().String())
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		if err := s.shutdown(); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		s.stopStreams()
		stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		_ = s.stopUpstream(stopCtx)
		cancel()
		return err
	}
}

// shutdown ends open streams, drains HTTP and then stops the upstream. Each
// phase gets its own timeout. Connections still open at the HTTP deadline
// are closed, which is not an error.
func (s *Server) shutdown() error {
	s.stopStreams()

	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancelHTTP()
	var errs []error
	if err := s.httpServer.Shutdown(httpCtx); err != nil {
		s.logger.Warn("http shutdown timed out, closing connections", "component", "api", "error", err.Error())
		if err := s.httpServer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancelStop()
	if err := s.stopUpstream(stopCtx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) stopUpstream(ctx context.Context) error {
	if s.upstream == nil {
		return nil
	}
	return s.upstream.Stop(ctx)
}
