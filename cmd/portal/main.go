package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"portal/internal/actions"
	"portal/internal/backend"
	"portal/internal/config"
	"portal/internal/consul"
	"portal/internal/events"
	"portal/internal/gateway"
	"portal/internal/guard"
	"portal/internal/kv"
	"portal/internal/logger"
	"portal/internal/session"
	"portal/internal/storage"
	"portal/internal/upstream"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("portal")
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.UsesInsecureSecret() {
		slog.Warn("SESSION_SECRET is not set; using the insecure development key")
	}

	slog.Info("Starting portal",
		"port", cfg.Port,
		"env", cfg.Env,
		"api_base_url", cfg.APIBaseURL,
		"redis", cfg.RedisEnabled(),
		"kafka", cfg.KafkaEnabled(),
		"storage", cfg.StorageEnabled(),
		"discovery", cfg.DiscoveryEnabled(),
	)

	ctx := context.Background()
	checks := map[string]gateway.HealthCheck{}

	sessionOpts := []session.Option{
		session.WithSecure(cfg.IsProduction()),
		session.WithTTL(cfg.SessionTTL),
		session.WithLogger(log),
	}
	if cfg.RedisEnabled() {
		store := kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "portal:")
		defer store.Close()
		if err := store.Ping(ctx); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		sessionOpts = append(sessionOpts, session.WithRevocations(session.NewRevocations(store)))
		checks["redis"] = store.Ping
		slog.Info("Connected to Redis; session revocation enabled")
	}
	sessions, err := session.NewManager(cfg.SessionSecret, sessionOpts...)
	if err != nil {
		slog.Error("Failed to create session manager", "error", err)
		os.Exit(1)
	}

	var consulClient *consul.Client
	if cfg.ConsulAddr != "" {
		consulClient, err = consul.NewClient(cfg.ConsulAddr, cfg.ConsulToken)
		if err != nil {
			slog.Error("Failed to create Consul client", "error", err)
			os.Exit(1)
		}
		checks["consul"] = consulClient.Ping
		slog.Info("Connected to Consul")
	}

	var resolver upstream.Resolver = upstream.NewStatic(cfg.APIBaseURL)
	if cfg.DiscoveryEnabled() {
		resolver = upstream.NewConsul(consulClient, cfg.BackendServiceName)
		slog.Info("Resolving backend through Consul", "service", cfg.BackendServiceName)
	}
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if cfg.KafkaEnabled() {
		kafkaCfg, err := events.NewKafkaConfig(cfg.KafkaBrokers, cfg.KafkaAuthEventsTopic)
		if err != nil {
			slog.Error("Invalid Kafka configuration", "error", err)
			os.Exit(1)
		}
		kp, err := events.NewKafkaPublisher(kafkaCfg, log)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		publisher = kp
		slog.Info("Publishing auth events to Kafka", "topic", kafkaCfg.Topic)
	}
	defer publisher.Close()

	serviceOpts := []actions.Option{actions.WithEvents(publisher), actions.WithLogger(log)}
	if cfg.StorageEnabled() {
		archive, err := storage.New(ctx, storage.Config{
			Endpoint:       cfg.S3Endpoint,
			PublicEndpoint: cfg.S3PublicEndpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			Bucket:         cfg.S3Bucket,
			UseSSL:         cfg.S3UseSSL,
		}, log)
		if err != nil {
			slog.Error("Failed to create invoice archive", "error", err)
			os.Exit(1)
		}
		if err := archive.EnsureBucketExists(ctx); err != nil {
			slog.Error("Failed to prepare invoice bucket", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, actions.WithArchive(archive, cfg.InvoiceURLTTL))
		checks["storage"] = archive.Health
		slog.Info("Invoice archive enabled", "bucket", cfg.S3Bucket)
	}
	svc := actions.NewService(backend.New(resolver, httpClient), sessions, serviceOpts...)

	detector := guard.Detector(sessions.HasCookie)
	if cfg.GuardVerifySession {
		detector = sessions.Verify
	}

	router := gateway.SetupRouter(gateway.Dependencies{
		Sessions:   sessions,
		Actions:    svc,
		Resolver:   resolver,
		HTTPClient: httpClient,
		Routes:     guard.DefaultRoutes(),
		Detector:   detector,
		Checks:     checks,
		Logger:     log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("Portal listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	var registered *consul.ServiceConfig
	if consulClient != nil && cfg.RegisterConsul {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			slog.Error("PORTAL_PORT must be numeric for Consul registration", "port", cfg.Port)
			os.Exit(1)
		}
		registered = consul.PortalService(cfg.ServiceHost, port)
		if err := consulClient.Register(registered); err != nil {
			slog.Error("Failed to register with Consul", "error", err)
			os.Exit(1)
		}
		slog.Info("Registered with Consul", "service_id", registered.ID)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down portal")

	if registered != nil {
		if err := consulClient.Deregister(registered.ID); err != nil {
			slog.Warn("Failed to deregister from Consul", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Portal stopped")
}
