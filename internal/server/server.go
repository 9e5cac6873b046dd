// Package server exposes the diagnostic HTTP endpoint.
//
// Every request is answered with a plain-text hint explaining how to fire the
// scheduled check by hand. When test mode is on, /__scheduled actually runs it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nlkomaru/vrc-playtime/internal/job"
	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

const (
	ScheduledPath = "/__scheduled"
	// AnyMinute is the cron expression placed in the help URL.
	AnyMinute = "* * * * *"
)

// Runner runs one scheduled invocation
type Runner interface {
	Run(ctx context.Context, cron string) job.Result
}

// Options configure the router
type Options struct {
	// TestScheduled enables the /__scheduled trigger.
	TestScheduled bool
}

// NewRouter builds the HTTP handler
func NewRouter(runner Runner, opts Options, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))

	if opts.TestScheduled && runner != nil {
		router.HandleFunc(ScheduledPath, scheduledHandler(runner))
	}

	router.HandleFunc("/*", helpHandler)
	router.NotFound(helpHandler)
	router.MethodNotAllowed(helpHandler)

	return router
}

// ScheduledURL returns the URL an operator can curl to fire the schedule, built
// from the request that reached the server.
func ScheduledURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   r.Host,
		Path:   ScheduledPath,
	}
	q := r.URL.Query()
	q.Add("cron", AnyMinute)
	u.RawQuery = q.Encode()
	return u
}

// HelpText is the body returned for every diagnostic request
func HelpText(r *http.Request) string {
	return fmt.Sprintf("To test the scheduled handler, ensure you have used the \"--test-scheduled\" then try running \"curl %s\".",
		ScheduledURL(r).String())
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HelpText(r)))
}

func scheduledHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cron := r.URL.Query().Get("cron")
		if cron == "" {
			cron = AnyMinute
		}

		// The check outlives a client that hangs up mid-request.
		runner.Run(context.WithoutCancel(r.Context()), cron)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ran scheduled event"))
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("HTTP request", logger.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
			})
		})
	}
}
