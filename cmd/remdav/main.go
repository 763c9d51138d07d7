// Command remdav serves Remind, Abook and Taskwarrior files as CalDAV
// and CardDAV collections.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remdav/internal/config"
	"remdav/internal/log"
	"remdav/internal/metrics"
	"remdav/server"
	"remdav/server/auth"
	"remdav/storage"
	"remdav/storage/abook"
	"remdav/storage/remind"
	"remdav/storage/taskw"
)

var version = "dev"

func main() {
	flags := config.Flags()
	flags.Bool("version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Println("remdav", version)
		return
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "remdav:", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var adapters []storage.Watchable
	if cfg.RemindFile != "" {
		adapters = append(adapters, remind.New(cfg.RemindFile, cfg.RemindTimezone, cfg.FilesystemFolder))
	}
	if cfg.AbookFile != "" {
		adapters = append(adapters, abook.New(cfg.AbookFile, cfg.FilesystemFolder))
	}
	if cfg.TaskFolder != "" {
		adapters = append(adapters, taskw.New(cfg.TaskFolder, cfg.FilesystemFolder))
	}

	plain := make([]storage.Adapter, len(adapters))
	for i, a := range adapters {
		plain[i] = a
	}
	registry := storage.NewRegistry(plain...)

	for _, a := range adapters {
		logger.Info().Str("adapter", a.Name()).Stringer("kind", a.Kind()).Msg("adapter configured")
	}

	authenticator := auth.NewStaticAuthenticator(cfg.Users)
	if authenticator.Anonymous() {
		logger.Warn().Msg("no users configured, any username is accepted")
	}

	davHandler := server.NewHandler(cfg.BaseURI, cfg.Realm, registry)

	router := newRouter(cfg, authenticator, davHandler)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := storage.Watch(ctx, adapters...); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("file watcher stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("listen", cfg.Listen).Str("base_uri", cfg.BaseURI).Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server exiting")
}

func init() {
	// chi only routes methods it knows about.
	for _, m := range []string{"PROPFIND", "PROPPATCH", "REPORT", "MKCOL", "MKCALENDAR"} {
		chi.RegisterMethod(m)
	}
}

func newRouter(cfg *config.Config, authenticator *auth.StaticAuthenticator, dav *server.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// RFC 6764 bootstrapping: clients probe the well-known paths first.
	wellKnown := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, cfg.BaseURI, http.StatusMovedPermanently)
	}
	r.HandleFunc("/.well-known/caldav", wellKnown)
	r.HandleFunc("/.well-known/carddav", wellKnown)

	davStack := auth.Middleware(authenticator, cfg.Realm)(dav)
	base := strings.TrimSuffix(cfg.BaseURI, "/")
	if base == "" {
		r.Handle("/", davStack)
		r.Handle("/*", davStack)
	} else {
		r.Handle(base, davStack)
		r.Handle(base+"/*", davStack)
	}

	return r
}

// requestMetrics records every finished request by method and status
// class.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordRequest(r.Method, strconv.Itoa(rec.status/100)+"xx")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
