package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/zenvoice/backoffice/core"
	"github.com/zenvoice/backoffice/modules/tenantadmin"
	"github.com/zenvoice/backoffice/pkg/audit"
	"github.com/zenvoice/backoffice/pkg/auth"
	"github.com/zenvoice/backoffice/pkg/config"
	"github.com/zenvoice/backoffice/pkg/httpserver"
	"github.com/zenvoice/backoffice/pkg/logger"
	"github.com/zenvoice/backoffice/pkg/mongodb"
	"github.com/zenvoice/backoffice/pkg/outbox"
	"github.com/zenvoice/backoffice/pkg/redis"
	"github.com/zenvoice/backoffice/pkg/requestmeta"
	"github.com/zenvoice/backoffice/pkg/store"
	"github.com/zenvoice/backoffice/pkg/tenant"
)

type appConfig struct {
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`

	HTTP    httpserver.Config
	Mongo   mongodb.Config
	Redis   redis.Config
	SMTP    outbox.TransportConfig
	Tenants tenantadmin.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	logOpt := logger.WithDevelopment("backoffice")
	if cfg.AppEnv == "production" {
		logOpt = logger.WithProduction("backoffice")
	}
	log := logger.New(logOpt, logger.WithContextExtractors(tenant.LoggerExtractor()))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	registry, err := mongodb.NewRegistry(ctx, cfg.Mongo)
	if err != nil {
		// The central database is a hard dependency; without it the
		// process cannot resolve a single tenant.
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := registry.Shutdown(shutdownCtx); err != nil {
			log.Error("mongodb shutdown failed", logger.Error(err))
		}
	}()
	central := registry.Central()

	var tenantCache tenant.Cache
	if cfg.Redis.Enabled() {
		redisClient, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		tenantCache = tenant.NewRedisCache(redisClient)
	} else {
		tenantCache = tenant.NewMemoryCache()
	}
	defer tenantCache.Close()

	recorder := audit.NewRecorder(audit.NewMongoStorage(central), log)
	defer recorder.Flush()

	tenantStore := audit.NewAudited(store.NewMongoStore[tenant.Tenant](central, tenant.CollectionName), recorder)

	jobStore := outbox.NewMongoJobStore(central)
	queue := outbox.NewQueue(jobStore)
	worker, err := outbox.NewWorker(jobStore, outbox.NewSMTPTransport(0), cfg.SMTP, outbox.WithLogger(log))
	if err != nil {
		return err
	}

	authService, err := auth.NewService(cfg.JWTSigningKey)
	if err != nil {
		return err
	}

	admin := tenantadmin.NewService(cfg.Tenants, tenantStore, queue, tenantCache, log)

	resolver := tenant.NewSubdomainResolver("." + cfg.Tenants.AppDomain)
	provider := tenant.NewStoreProvider(tenantStore)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestmeta.Middleware)
	r.Use(auth.Middleware(authService))

	r.Get("/health", httpserver.HealthcheckHandler(
		mongodb.Healthcheck(registry.CentralClient()),
	))

	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(resolver, provider, registry, tenant.WithCache(tenantCache)))

		r.Mount("/admin", tenantadmin.AdminRouter(admin))
		r.Mount("/setup", tenantadmin.SetupRouter(admin))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			t, ok := tenant.FromContext(r.Context())
			if !ok {
				core.WriteError(w, core.ErrTenantNotFound)
				return
			}
			core.WriteJSON(w, http.StatusOK, t)
		})
	})

	server := httpserver.New(cfg.HTTP, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(gctx))
	g.Go(func() error { return server.Run(gctx, r) })

	log.InfoContext(ctx, "backoffice started",
		slog.String("addr", cfg.HTTP.Addr),
		slog.String("env", cfg.AppEnv))

	return g.Wait()
}
