// Command authaudit consumes the portal's auth events and keeps per-account login activity in Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"portal/internal/config"
	"portal/internal/events"
	"portal/internal/kv"
	"portal/internal/logger"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	log := logger.New("authaudit")
	logger.SetDefault(log)

	if err := config.ValidateEnv([]string{"KAFKA_BROKERS", "REDIS_ADDR"}); err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	port := config.GetEnvOrDefault("AUTHAUDIT_PORT", "8090")
	redisDB, _ := strconv.Atoi(config.GetEnvOrDefault("REDIS_DB", "0"))
	retention, err := config.GetEnvDuration("AUDIT_RETENTION", 30*24*time.Hour)
	if err != nil {
		log.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	store := kv.NewRedisStore(os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASSWORD"), redisDB, "portal:")
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Ping(ctx); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	activity := events.NewActivity(store, retention, log)
	processor := events.NewProcessor(store, activity.Record, log)

	topic := config.GetEnvOrDefault("KAFKA_TOPIC_AUTH_EVENTS", "portal-auth-events")
	consumer, err := events.NewConsumer(&events.ConsumerConfig{
		Brokers:       os.Getenv("KAFKA_BROKERS"),
		Topic:         topic,
		DLQTopic:      config.GetEnvOrDefault("KAFKA_TOPIC_AUTH_EVENTS_DLQ", topic+"-dlq"),
		ConsumerGroup: config.GetEnvOrDefault("KAFKA_CONSUMER_GROUP", "authaudit"),
		MaxRetries:    3,
		Backoff:       time.Second,
	}, processor, log)
	if err != nil {
		log.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("Consumer error", "error", err)
			stop()
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           setupRouter(activity, store.Ping),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Audit service listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down audit service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
}

func setupRouter(activity *events.Activity, ping func(context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "authaudit"})
	})

	r.GET("/activity/:account", func(c *gin.Context) {
		account := c.Param("account")
		ctx := c.Request.Context()

		last, seen, err := activity.LastLogin(ctx, account)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		failed, err := activity.FailedLogins(ctx, account)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		body := gin.H{"account": account, "failed_logins": failed}
		if seen {
			body["last_login"] = last
		}
		c.JSON(http.StatusOK, body)
	})

	return r
}
