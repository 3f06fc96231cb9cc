package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/media1take/Telegram-hosting/internal/platform/ratelimiter"
	"github.com/media1take/Telegram-hosting/pkg/models"
)

const (
	defaultListLimit        = 20
	defaultSearchLimit      = 30
	defaultRecentPerChannel = 10
	defaultSearchPerChannel = 20
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{OK: true, Channels: s.catalog.Channels().Aliases()})
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.ChannelList{Channels: s.catalog.Channels().Aliases()})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offsetID, err := intParam(r, "offset_id", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.catalog.List(r.Context(), s.channelParam(r), limit, offsetID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	perChannel, err := intParam(r, "limit_per_channel", defaultRecentPerChannel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.catalog.Recent(r.Context(), perChannel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RecentResult{Results: results})
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	msgID, err := requiredIntParam(r, "msg_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	swipe, err := s.catalog.Swipe(r.Context(), s.channelParam(r), msgID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, swipe)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := requiredParam(r, "query")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultSearchLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alias := s.channelParam(r)
	results, err := s.catalog.Search(r.Context(), alias, query, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SearchResult{Channel: alias, Query: query, Results: results})
}

func (s *Server) handleSearchAll(w http.ResponseWriter, r *http.Request) {
	query, err := requiredParam(r, "query")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	perChannel, err := intParam(r, "limit_per_channel", defaultSearchPerChannel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.catalog.SearchAll(r.Context(), query, aliasList(r.URL.Query().Get("channels")), perChannel)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SearchResult{Query: query, Results: results})
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	alias := s.channelParam(r)
	video, err := s.catalog.Video(r.Context(), alias, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewVideoDetail(video.Record, alias))
}

// thumbnailETag is a strong validator derived from the image bytes.
func thumbnailETag(blob []byte) string {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// Only reachable with an invalid size or key.
		panic(err)
	}
	_, _ = h.Write(blob)
	return `"` + base58.Encode(h.Sum(nil)) + `"`
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	blob, err := s.catalog.Thumbnail(r.Context(), s.channelParam(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	etag := thumbnailETag(blob)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "public, max-age=86400")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "image/jpeg")
	h.Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// acquireStream reserves a stream slot, answering 429 when none is free. The
// returned request carries a context that also ends when the server shuts
// down.
func (s *Server) acquireStream(w http.ResponseWriter, r *http.Request) (*http.Request, func(), bool) {
	release, ok := s.streams.acquire(ratelimiter.ClientKey(r))
	if !ok {
		s.metrics.Rejected("stream_limit")
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{Detail: "Too many concurrent streams"})
		return nil, nil, false
	}
	s.metrics.StreamStarted()
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(s.streamCtx, cancel)
	return r.WithContext(ctx), func() {
		stop()
		cancel()
		s.metrics.StreamFinished()
		release()
	}, true
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r, release, ok := s.acquireStream(w, r)
	if !ok {
		return
	}
	defer release()

	file, err := s.catalog.Open(r.Context(), s.channelParam(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.streamer.ServeInline(w, r, file); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r, release, ok := s.acquireStream(w, r)
	if !ok {
		return
	}
	defer release()

	file, err := s.catalog.Open(r.Context(), s.channelParam(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.streamer.ServeAttachment(w, r, file, file.FileName()); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := s.catalog.Playlist(r.Context(), s.channelParam(r), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
