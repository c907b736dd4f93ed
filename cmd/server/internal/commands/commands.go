package commands

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type Globals struct {
	Debug   bool
	Version string
}

// configureHTTPServer builds the server. Request contexts carry the logger
// from ctx but are not cancelled with it, so in-flight requests finish
// during a graceful shutdown.
func configureHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return base },
		ErrorLog:          stdlog.New(zerolog.Ctx(ctx).With().Str("component", "http").Logger(), "", 0),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute, // large uploads
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
