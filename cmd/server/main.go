package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/divyansh14-yadav/getqrbackend/pkg/billing"
	"github.com/divyansh14-yadav/getqrbackend/pkg/config"
	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/httpserver"
	"github.com/divyansh14-yadav/getqrbackend/pkg/links"
	"github.com/divyansh14-yadav/getqrbackend/pkg/logger"
	mongoconn "github.com/divyansh14-yadav/getqrbackend/pkg/mongo"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	redisconn "github.com/divyansh14-yadav/getqrbackend/pkg/redis"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
	billingapi "github.com/divyansh14-yadav/getqrbackend/svc/billing"
	linksapi "github.com/divyansh14-yadav/getqrbackend/svc/links"
	"github.com/divyansh14-yadav/getqrbackend/svc/rest"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"getqr"`

	// PlansFile optionally overlays provider price IDs and amounts onto the
	// built-in plan matrix.
	PlansFile string `env:"PLANS_FILE"`

	// AuthHeader is the trusted header the auth proxy forwards the user ID
	// in.
	AuthHeader string `env:"AUTH_HEADER" envDefault:"X-User-ID"`

	// DedupTTL bounds how long processed webhook event IDs are remembered.
	DedupTTL time.Duration `env:"EVENT_DEDUP_TTL" envDefault:"24h"`
}

func main() {
	var (
		appCfg     appConfig
		mongoCfg   mongoconn.Config
		redisCfg   redisconn.Config
		serverCfg  httpserver.Config
		paddleCfg  billing.PaddleConfig
		billingCfg billingapi.Config
		linksCfg   linksapi.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&serverCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&billingCfg)
	config.MustLoad(&linksCfg)

	log := logger.New(logger.WithEnvironment(appCfg.Environment, appCfg.ServiceName))
	logger.SetAsDefault(log)

	ctx := context.Background()

	db, err := mongoconn.ConnectDatabase(ctx, mongoCfg)
	if err != nil {
		log.Error("failed to connect to mongodb", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Client().Disconnect(context.Background()) }()

	rdb, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	catalog := plan.Default()
	if appCfg.PlansFile != "" {
		catalog, err = plan.FromFile(appCfg.PlansFile)
		if err != nil {
			log.Error("failed to load plans file",
				slog.String("path", appCfg.PlansFile), slog.Any("error", err))
			os.Exit(1)
		}
	}

	provider, err := billing.NewPaddleProvider(paddleCfg, catalog)
	if err != nil {
		log.Error("failed to init payment provider", slog.Any("error", err))
		os.Exit(1)
	}

	subsStore := subscription.NewMongoStore(db)
	linkStore := links.NewMongoStore(db)
	linkSvc := links.NewService(linkStore, subsStore, catalog,
		links.WithServiceLogger(log))
	reconciler := subscription.NewReconciler(subsStore, provider, linkSvc,
		subscription.WithLogger(log),
		subscription.WithDedupCache(subscription.NewRedisDedup(rdb, appCfg.DedupTTL)))
	gate := entitlement.NewGate(subsStore, catalog)

	billingSvc := billingapi.NewService(billingCfg, provider, reconciler, subsStore, catalog, gate,
		billingapi.WithLogger(log))
	linksSvc := linksapi.NewService(linksCfg, linkSvc, gate,
		linksapi.WithLogger(log))

	authn := func(next http.Handler) http.Handler {
		return rest.TrustedHeaderAuth(appCfg.AuthHeader)(rest.RequireUser(next))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(log,
		mongoconn.Healthcheck(db.Client()),
		redisconn.Healthcheck(rdb)))
	r.Mount("/v1/billing", billingSvc.Handler(authn))
	r.Mount("/v1/links", linksSvc.Handler(authn))

	srv := httpserver.New(serverCfg, httpserver.WithLogger(log))
	if err := srv.Run(ctx, r); err != nil {
		log.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
