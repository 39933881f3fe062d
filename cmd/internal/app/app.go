package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/suffus/auth0/cmd/identity"
	"github.com/suffus/auth0/cmd/internal/auth/api"
	"github.com/suffus/auth0/cmd/internal/auth/device"
	"github.com/suffus/auth0/cmd/internal/auth/session"
	"github.com/suffus/auth0/cmd/internal/event"
	"github.com/suffus/auth0/cmd/internal/resource"
	"github.com/suffus/auth0/cmd/security/token"
)

// App owns the wired service and its external connections.
type App struct {
	cfg    Config
	log    *slog.Logger
	server *http.Server

	pool  *pgxpool.Pool
	rdb   *redis.Client
	audit *event.Producer
}

// New wires stores, verifiers and the HTTP handler from cfg. External
// connections are only opened for the backends cfg names; everything else
// runs in memory.
func New(ctx context.Context, cfg Config) (*App, error) {
	log := NewLogger(cfg.LogLevel)

	a := &App{cfg: cfg, log: log}

	var directory identity.Store
	var catalog resource.Store
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		directory = identity.NewPostgresStore(pool)
		catalog = resource.NewPostgresStore(pool)
		log.Info("using postgres for identity and catalog")
	} else {
		mem := identity.NewMemoryStore()
		directory = mem
		catalog = resource.NewMemoryStore()
		log.Warn("no database configured, identity and catalog are in memory")
	}

	var sessionStore session.Store
	if cfg.RedisAddr != "" {
		rdb, err := NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = rdb
		sessionStore = session.NewRedisStore(rdb)
		log.Info("using redis for sessions", slog.String("addr", cfg.RedisAddr))
	} else {
		sessionStore = session.NewMemoryStore()
		log.Warn("no redis configured, sessions are in memory")
	}

	tokens, err := session.NewPasetoV4PublicManager(cfg.Session.AccessTokenKeyHex, cfg.Session.Issuer)
	if err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Session.AccessTokenKeyHex == "" {
		log.Warn("no access token key configured, using an ephemeral key")
	}
	if !token.HMACEnabled() {
		log.Warn("no refresh token hmac key configured, hashing falls back to plain SHA-256")
	}

	sessions, err := session.NewService(sessionStore, tokens, cfg.Session, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := a.buildVerifiers(ctx, directory)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.audit = event.NewProducer(cfg.Kafka, log)
	if a.audit == nil {
		log.Warn("no kafka brokers configured, audit events are disabled")
	}

	handler := api.NewHandler(log, sessions, registry, directory, catalog, a.audit)
	mux := http.NewServeMux()
	handler.Register(mux)

	metrics, reg := NewMetrics()
	mux.Handle("GET /metrics", MetricsHandler(reg))
	mux.HandleFunc("GET /readyz", a.handleReady)

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           WithRequestLogging(log, metrics.Instrument(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

// handleReady reports readiness: the configured backends must answer a ping.
// In-memory backends are always ready.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			a.log.WarnContext(ctx, "readiness check failed", slog.String("backend", "postgres"), slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","backend":"postgres"}` + "\n"))
			return
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.log.WarnContext(ctx, "readiness check failed", slog.String("backend", "redis"), slog.Any("error", err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","backend":"redis"}` + "\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}` + "\n"))
}

// buildVerifiers assembles the device code verifier registry.
func (a *App) buildVerifiers(ctx context.Context, directory identity.Store) (*device.Registry, error) {
	registry := device.NewRegistry()

	if a.cfg.Yubico.ClientID != "" {
		yk, err := device.NewYubicoVerifier(a.cfg.Yubico)
		if err != nil {
			return nil, err
		}
		registry.Register(identity.DeviceYubikey, yk)
		a.log.Info("yubikey verification enabled")
	}

	if len(a.cfg.StaticDevices) > 0 {
		static := device.NewStaticVerifier(a.cfg.StaticReplayWindow)
		for _, pair := range a.cfg.StaticDevices {
			id, secret, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("bad static device %q, want identifier=secret", pair)
			}
			if err := static.Enroll(id, secret); err != nil {
				return nil, err
			}
			if err := a.seedStaticDevice(ctx, directory, id); err != nil {
				return nil, err
			}
		}
		registry.Register(identity.DeviceStatic, static)
		a.log.Warn("static device verification enabled", slog.Int("devices", len(a.cfg.StaticDevices)))
	}

	if len(registry.Types()) == 0 {
		return nil, errors.New("no device verifiers configured")
	}
	return registry, nil
}

// seedStaticDevice enrolls a static device in a memory directory so dev mode
// works out of the box. With a real database, enrollment is data, not config.
func (a *App) seedStaticDevice(ctx context.Context, directory identity.Store, identifier string) error {
	mem, ok := directory.(*identity.MemoryStore)
	if !ok {
		return nil
	}

	const devUserID = "dev-user"
	if _, err := mem.GetUserByID(ctx, devUserID); identity.IsNotFound(err) {
		mem.PutUser(identity.User{
			ID:        devUserID,
			Email:     "dev@localhost",
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
	}

	_, err := mem.RegisterDevice(ctx, identity.RegisterDeviceInput{
		UserID:     devUserID,
		Type:       identity.DeviceStatic,
		Identifier: identifier,
		Name:       "seeded static device",
	})
	if identity.IsConflict(err) {
		return nil
	}
	return err
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.Close()
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)

	a.Close()
	if serveErr := <-errCh; serveErr != nil {
		return serveErr
	}
	return err
}

// Close releases external connections. Safe to call more than once.
func (a *App) Close() {
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Error("close audit producer", slog.Any("error", err))
		}
		a.audit = nil
	}
	if a.rdb != nil {
		a.rdb.Close()
		a.rdb = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
