package httpserver

import (
	"net/http"
	"time"
)

// New builds the formbridge HTTP server. The header read timeout keeps a
// stalled client from pinning a connection; per-request deadlines come from
// the timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
