package api

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) channelParam(r *http.Request) string {
	if alias := strings.TrimSpace(r.URL.Query().Get("channel")); alias != "" {
		return alias
	}
	return s.catalog.Channels().Default()
}

// intParam reads a non-negative integer query parameter, falling back when
// it is absent.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("invalid " + name)
	}
	return v, nil
}

func requiredIntParam(r *http.Request, name string) (int, error) {
	if strings.TrimSpace(r.URL.Query().Get(name)) == "" {
		return 0, badRequest(name + " is required")
	}
	return intParam(r, name, 0)
}

func requiredParam(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", badRequest(name + " is required")
	}
	return v, nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, badRequest("invalid video id")
	}
	return id, nil
}

// aliasList splits a comma-separated channels parameter. nil means all.
func aliasList(raw string) []string {
	if raw == "" {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
