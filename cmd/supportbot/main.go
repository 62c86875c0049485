package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AlexKimmel/supportbot/internal/admin"
	"github.com/AlexKimmel/supportbot/internal/auth"
	"github.com/AlexKimmel/supportbot/internal/bot"
	"github.com/AlexKimmel/supportbot/internal/chat"
	"github.com/AlexKimmel/supportbot/internal/config"
	"github.com/AlexKimmel/supportbot/internal/gateway"
	"github.com/AlexKimmel/supportbot/internal/obs"
	"github.com/AlexKimmel/supportbot/internal/ratelimit/memory"
	"github.com/AlexKimmel/supportbot/internal/stats"
	"github.com/AlexKimmel/supportbot/internal/store"
	"github.com/AlexKimmel/supportbot/internal/store/postgres"
)

var version = "v0.1.0"

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		log.Fatalf("load env: %v", err)
	}

	path := flag.String("config", envOr("SUPPORTBOT_CONFIG", "./config.yaml"), "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	logger.Info().Str("version", version).Str("config", *path).Msg("starting supportbot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	st, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	rec, err := openStats(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}

	// limiter + policy
	policy := cfg.Limits.Policy()
	lim := memory.New(
		memory.WithLogger(logger),
		memory.WithEvictHook(metrics.OnEvict),
	)
	defer lim.Close()
	metrics.RegisterRecords(lim.Len)
	lim.StartJanitor(ctx, cfg.Limits.SweepInterval(), cfg.Limits.Idle())

	var send chat.Sender
	if cfg.Bot.SendURL != "" {
		client, err := chat.NewClient(chat.ClientConfig{
			URL:       cfg.Bot.SendURL,
			Token:     cfg.Bot.SendToken,
			Timeout:   cfg.Bot.SendTimeout(),
			SendRPS:   cfg.Bot.SendRPS,
			SendBurst: cfg.Bot.SendBurst,
			MaxRunes:  cfg.Bot.ChunkRunes,
		}, chat.NewHTTPTransport())
		if err != nil {
			logger.Fatal().Err(err).Msg("chat client")
		}
		send = client
	} else {
		logger.Warn().Msg("bot.send_url not set, replies are dropped")
	}

	resolver := auth.NewResolver(cfg.Bot.Admins, st, logger)
	ops := admin.NewOps(lim, st, logger)
	b := bot.New(ops, st, send, resolver, rec)

	pipeline := gateway.Chain(
		gateway.Dispatch(),
		gateway.TextLimit(cfg.Bot.MaxMessageRunes),
		gateway.RouteMatcher(b.Router()),
		obs.UpdateLogger(logger),
		metrics.Middleware(),
		gateway.RateLimit(lim, policy, resolver, b, gateway.LimitHooks{
			OnDecision: b.Record,
			OnLimited:  metrics.OnLimited,
			OnError:    metrics.OnLimiterError,
		}),
		b.Track(),
	)

	keys := make([]auth.Key, 0, len(cfg.Auth.Keys))
	for _, k := range cfg.Auth.Keys {
		if k.Secret != "" && k.ID != "" {
			keys = append(keys, auth.Key{ID: k.ID, Secret: k.Secret})
		}
	}
	authStore := auth.NewStatic(cfg.Auth.Header, keys)
	if authStore.Len() == 0 {
		logger.Warn().Msg("no API keys configured, /webhook and /v1 reject every request")
	}

	r := chi.NewRouter()
	r.Use(obs.Logger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(version))
	})
	r.Method(http.MethodGet, cfg.Observability.PrometheusPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(authStore.Middleware(nil))
		r.Handle("/webhook", chat.Webhook(pipeline, cfg.Server.MaxBody()))
		r.Mount("/v1", admin.Routes(ops))
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
	}

	// start
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openStore(ctx context.Context, cfg config.Database, logger zerolog.Logger) (store.Store, error) {
	if cfg.URL == "" {
		logger.Info().Msg("database.url not set, using in-memory store")
		return store.NewMemory(), nil
	}
	pg, err := postgres.Open(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

func openStats(ctx context.Context, cfg config.Redis, logger zerolog.Logger) (stats.Recorder, error) {
	if cfg.Addr == "" {
		return stats.NewMemory(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info().Str("addr", cfg.Addr).Msg("recording admission stats in redis")
	return stats.NewRedis(rdb,
		stats.WithPrefix(cfg.Prefix),
		stats.WithTTL(cfg.TTL()),
		stats.WithTrackIdentities(cfg.TrackIdentities),
	), nil
}
