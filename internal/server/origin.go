package server

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker decides which browser origins may open a websocket. Requests
// without an Origin header (non-browser clients, tests) are allowed.
type OriginChecker struct {
	allowedHosts []string
}

func NewOriginChecker(allowedHosts ...string) *OriginChecker {
	return &OriginChecker{
		allowedHosts: allowedHosts,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originUrl, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := originUrl.Hostname()
	if host == "localhost" || host == "127.0.0.1" || strings.EqualFold(originUrl.Host, r.Host) {
		return true
	}

	for _, allowed := range c.allowedHosts {
		if strings.EqualFold(host, allowed) {
			return true
		}
	}

	return false
}
