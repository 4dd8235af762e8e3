// Package app wires the voiceflowd subsystems into a running server.
//
// New creates and connects everything from config, Run serves until the
// context is cancelled, and Shutdown tears the pieces down in order. Inject
// test doubles via functional options (WithStore, WithEngine, WithPolisher);
// without them, New builds the real implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/voiceflow/voiceflowd/internal/auth"
	"github.com/voiceflow/voiceflowd/internal/config"
	"github.com/voiceflow/voiceflowd/internal/observe"
	"github.com/voiceflow/voiceflowd/internal/ratelimit"
	"github.com/voiceflow/voiceflowd/internal/server"
	"github.com/voiceflow/voiceflowd/internal/session"
	"github.com/voiceflow/voiceflowd/internal/store"
	"github.com/voiceflow/voiceflowd/internal/textproc"
	"github.com/voiceflow/voiceflowd/internal/textproc/polish"
	"github.com/voiceflow/voiceflowd/pkg/asr"
	asrwhisper "github.com/voiceflow/voiceflowd/pkg/asr/whisper"
)

// shutdownTimeout bounds the graceful HTTP drain during Shutdown.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	store    store.Store
	engine   asr.Engine
	polisher textproc.Polisher
	metrics  *observe.Metrics

	limiter *ratelimit.Limiter
	httpSrv *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a record store instead of connecting from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithEngine injects a speech engine instead of loading a Whisper model.
func WithEngine(e asr.Engine) Option {
	return func(a *App) { a.engine = e }
}

// WithPolisher injects an AI polish client instead of creating one from
// config.
func WithPolisher(p textproc.Polisher) Option {
	return func(a *App) { a.polisher = p }
}

// WithMetrics injects a metrics bundle instead of the process default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires the application from config. Initialisation is synchronous:
// store connection and migration, engine load, polish client, HTTP routes.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initEngine(); err != nil {
		return nil, fmt.Errorf("app: init engine: %w", err)
	}
	a.initPolisher()

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	authSvc, err := auth.New()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute)
	a.closers = append(a.closers, func() error {
		a.limiter.Close()
		return nil
	})

	pipeline := textproc.NewPipeline(a.store, a.polisher)
	sessions := &session.Handler{
		Engine:   a.engine,
		Store:    a.store,
		Pipeline: pipeline,
		Auth:     authSvc,
		Metrics:  a.metrics,
		Cfg:      cfg.Streaming,
	}

	srv := server.New(server.Deps{
		Store:     a.store,
		Engine:    a.engine,
		Pipeline:  pipeline,
		Auth:      authSvc,
		Limiter:   a.limiter,
		Metrics:   a.metrics,
		Sessions:  sessions,
		Streaming: cfg.Streaming,
	})

	a.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore connects PostgreSQL when a DSN is configured, falling back to
// the in-memory store otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured, using in-memory store (history lost on restart)")
		a.store = store.NewMem()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initEngine loads the Whisper model unless an engine was injected. The
// engine is wrapped so concurrent transcription requests serialise.
func (a *App) initEngine() error {
	if a.engine != nil {
		a.engine = asr.Serialize(a.engine)
		return nil
	}

	if a.cfg.Engine.ModelPath == "" {
		return fmt.Errorf("engine.model_path is required")
	}
	eng, err := asrwhisper.New(a.cfg.Engine.ModelPath,
		asrwhisper.WithLanguage(a.cfg.Engine.Language),
		asrwhisper.WithMaxInputDuration(a.cfg.Streaming.ChunkDuration),
	)
	if err != nil {
		return err
	}
	a.engine = asr.Serialize(eng)
	a.closers = append(a.closers, eng.Close)
	return nil
}

// initPolisher creates the AI polish client when an API key is configured.
// Without one the pipeline simply skips the polish stage.
func (a *App) initPolisher() {
	if a.polisher != nil || a.cfg.Polish.APIKey == "" {
		return
	}

	client, err := polish.New(a.cfg.Polish.APIKey, a.cfg.Polish.Model,
		polish.WithBaseURL(a.cfg.Polish.BaseURL),
		polish.WithTimeout(a.cfg.Polish.Timeout),
	)
	if err != nil {
		slog.Warn("AI polish disabled", "error", err)
		return
	}
	a.polisher = client
}

// Run serves HTTP until ctx is cancelled, then drains gracefully. It
// returns the first server error, or nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.httpSrv.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("app: drain http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Shutdown releases every subsystem in order. Safe to call more than once.
func (a *App) Shutdown() error {
	a.stopOnce.Do(func() {
		var errs []error
		for _, closer := range a.closers {
			if err := closer(); err != nil {
				errs = append(errs, err)
			}
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}
