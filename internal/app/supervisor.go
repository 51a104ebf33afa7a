package app

import (
	"context"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Serve runs the periodic flush loop and, when handler is non-nil, the HTTP API
// under one supervisor until ctx is canceled.
func (a *App) Serve(ctx context.Context, handler http.Handler) error {
	hook := (&sutureslog.Handler{Logger: a.Logger.With("component", "supervisor")}).MustHook()

	root := suture.New("playtally", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	if a.Config.Sync.Interval > 0 {
		root.Add(NewFlushLoop(a.Dispatcher.Flush, a.Config.Sync.Interval, a.Logger.With("component", "flush-loop")))
	}

	if handler != nil {
		server := &http.Server{
			Addr:              a.Config.Server.Listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		root.Add(NewHTTPService(server, 10*time.Second))
		a.Logger.Info("serving API", "listen", a.Config.Server.Listen)
	}

	err := root.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
