// Package httpserver builds the daemon's ops listener.
package httpserver

import (
	"net/http"
	"time"
)

// New wraps a handler in a server with timeouts suited to a slow-traffic
// metrics endpoint.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
