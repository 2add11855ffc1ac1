// Package httpserver constructs the intake API's http.Server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server for the upload, ingress, and records endpoints.
// Only ReadHeaderTimeout is set here; per-request deadlines belong to the
// middleware chain so long-running uploads are not cut off mid-body.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
