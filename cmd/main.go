package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/duynhne/chat-service/config"
	database "github.com/duynhne/chat-service/internal/core"
	"github.com/duynhne/chat-service/internal/core/repository"
	"github.com/duynhne/chat-service/internal/gateway"
	logicv1 "github.com/duynhne/chat-service/internal/logic/v1"
	"github.com/duynhne/chat-service/internal/notify"
	"github.com/duynhne/chat-service/internal/presence"
	webv1 "github.com/duynhne/chat-service/internal/web/v1"
	"github.com/duynhne/chat-service/middleware"
	"github.com/duynhne/chat-service/pkg/logger/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Configuration load failed: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	zerolog.Setup(cfg.Logging.Level)
	log.Logger = log.With().Str("service", cfg.Service.Name).Logger()

	log.Info().
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Str("port", cfg.Service.Port).
		Str("bus", cfg.Bus.Driver).
		Msg("Service starting")

	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := middleware.InitTracing(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			tp = provider
			log.Info().
				Str("endpoint", cfg.Tracing.Endpoint).
				Float64("sample_rate", cfg.Tracing.SampleRate).
				Msg("Tracing initialized")
		}
	} else {
		log.Info().Msg("Tracing disabled (TRACING_ENABLED=false)")
	}

	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize profiling")
		} else {
			log.Info().Str("endpoint", cfg.Profiling.Endpoint).Msg("Profiling initialized")
			defer middleware.StopProfiling()
		}
	} else {
		log.Info().Msg("Profiling disabled (PROFILING_ENABLED=false)")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	pool, err := database.Connect(startCtx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(startCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("Database connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(startCtx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")

	bus, closeBus, err := newBus(cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Bus.Driver).Msg("Failed to initialize notification bus")
	}
	defer closeBus()
	notifier := notify.NewNotifier(bus)

	users := repository.NewUserRepository(pool)
	messages := repository.NewMessageRepository(pool)
	registry := presence.NewRedisRegistry(rdb, users, notifier, cfg.Presence.KeyPrefix, cfg.GetPresenceTTL())
	coordinator := presence.NewCoordinator(presence.NewDirectory(), users, messages, registry, notifier)

	hub := gateway.NewHub()
	if err := bus.Subscribe(context.Background(), hub.HandleNotification); err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to notification bus")
	}

	chat := logicv1.NewChatService(users, messages, registry, notifier, cfg.Chat.RecentLimit)

	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	r.Use(middleware.TracingMiddleware(cfg.Service.Name))
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.PrometheusMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/hello", webv1.Hello)
	r.GET("/ws", gateway.NewHandler(hub, coordinator).ServeWS)

	webv1.NewHandler(chat).RegisterRoutes(r.Group("/api"))

	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Service.Port).Msg("Starting chat service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	isShuttingDown.Store(true)
	if drainDelay := cfg.GetReadinessDrainDelayDuration(); drainDelay > 0 {
		log.Info().Dur("delay", drainDelay).Msg("Readiness drain delay started")
		time.Sleep(drainDelay)
	}

	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server...")

	// 1. Stop accepting HTTP requests. Websocket sessions are hijacked and
	// not waited for; their users expire from presence after the TTL.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		log.Info().Msg("HTTP server shutdown complete")
	}

	// 2. Stop receiving notifications.
	if err := bus.Close(); err != nil {
		log.Error().Err(err).Msg("Notification bus close error")
	}

	// 3. Shutdown tracer
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown error")
		} else {
			log.Info().Msg("Tracer shutdown complete")
		}
	}

	log.Info().Msg("Graceful shutdown complete")
}

// newBus builds the configured notification bus. The returned close func
// releases the underlying connection, if the bus owns one.
func newBus(cfg *config.Config, rdb redis.UniversalClient) (notify.Bus, func(), error) {
	if cfg.Bus.Driver == "nats" {
		nc, err := nats.Connect(cfg.Bus.NATSURL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Msg("NATS disconnected")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			}),
		)
		if err != nil {
			return nil, nil, err
		}
		subject := cfg.Bus.Channel
		if subject == "" {
			subject = notify.DefaultNATSSubject
		}
		log.Info().Str("url", cfg.Bus.NATSURL).Str("subject", subject).Msg("NATS bus connected")
		return notify.NewNATSBus(nc, subject), nc.Close, nil
	}

	channel := cfg.Bus.Channel
	if channel == "" {
		channel = notify.DefaultRedisChannel
	}
	log.Info().Str("channel", channel).Msg("Redis bus ready")
	return notify.NewRedisBus(rdb, channel), func() {}, nil
}
