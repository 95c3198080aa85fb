package httpserver

import (
	"net/http"
	"time"
)

// New builds the operational HTTP server. Health and metrics responses are
// tiny, so short timeouts are safe and keep a stuck scrape from pinning a
// connection.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
