package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	notifykit "github.com/notifykit/notifykit"
	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/channels"
	"github.com/notifykit/notifykit/pkg/config"
	"github.com/notifykit/notifykit/pkg/digest"
	"github.com/notifykit/notifykit/pkg/email"
	"github.com/notifykit/notifykit/pkg/httpserver"
	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/mongo"
	"github.com/notifykit/notifykit/pkg/pg"
	"github.com/notifykit/notifykit/pkg/redis"
	"github.com/notifykit/notifykit/pkg/registry"
	"github.com/notifykit/notifykit/pkg/templatecache"
	"github.com/notifykit/notifykit/svc/notifier"
)

type appConfig struct {
	PG       pg.Config
	Mongo    mongo.Config
	Redis    redis.Config
	Email    email.Config
	HTTP     httpserver.Config
	Engine   notifykit.Config
	Notifier notifier.Config

	// Digest cadence applied to every recipient until per-user preference
	// storage lands. "disabled" delivers everything immediately.
	DigestFrequency string `env:"DIGEST_DEFAULT_FREQUENCY" envDefault:"disabled"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithProduction("notifierd"))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		log.ErrorContext(ctx, "postgres connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		log.ErrorContext(ctx, "migrations failed", logger.Error(err))
		os.Exit(1)
	}

	db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
	if err != nil {
		log.ErrorContext(ctx, "mongodb connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer db.Client().Disconnect(context.Background())

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.ErrorContext(ctx, "redis connect failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	mailer, err := email.NewPostmarkClient(cfg.Email)
	if err != nil {
		log.ErrorContext(ctx, "postmark client init failed", logger.Error(err))
		os.Exit(1)
	}

	inbox := channels.NewMongoInbox(db)
	if err := inbox.EnsureIndexes(ctx); err != nil {
		log.ErrorContext(ctx, "inbox index setup failed", logger.Error(err))
		os.Exit(1)
	}

	streams := registry.NewRedisPublisher(redisClient)
	eng := notifykit.New(cfg.Engine, notifykit.Deps{
		Shared:      templatecache.NewRedisTier(redisClient),
		Streams:     streams,
		Email:       mailer,
		Inbox:       inbox,
		Digests:     digest.NewPGStorage(pool),
		Broadcasts:  broadcasts.NewPGStorage(pool),
		Preferences: digest.StaticPreferences(digest.Frequency(cfg.DigestFrequency)),
	}, notifykit.WithLogger(log))
	defer eng.Close()

	svc := notifier.New(cfg.Notifier, eng, eng.Registry(), streams, eng.Tracker(), inbox, log)

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/health", httpserver.HealthCheckHandler(ctx, log))
	router.Method(http.MethodGet, "/ready", httpserver.HealthCheckHandler(ctx, log,
		pg.Healthcheck(pool),
		mongo.Healthcheck(db.Client()),
		redis.Healthcheck(redisClient),
	))
	router.Mount("/", svc.Router())

	go eng.Run(ctx)

	if err := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, router); err != nil {
		log.ErrorContext(ctx, "server stopped with error", logger.Error(err))
		os.Exit(1)
	}
}
