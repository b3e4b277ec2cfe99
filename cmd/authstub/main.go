// Command authstub runs the reference storefront API used for local
// development and integration tests of the session client.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jonboulle/clockwork"
	"github.com/layer-3/pricewatch/adapters/events"
	"github.com/layer-3/pricewatch/adapters/revocation"
	"github.com/layer-3/pricewatch/adapters/tokenizer"
	"github.com/layer-3/pricewatch/core"
	"github.com/layer-3/pricewatch/ports"
	"github.com/layer-3/pricewatch/service"
	transport "github.com/layer-3/pricewatch/transport/http"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	logger := log.StandardLogger()
	if os.Getenv("AUTHSTUB_DEBUG") != "" {
		logger.SetLevel(log.DebugLevel)
	}

	// A fresh key per run: tokens do not survive a restart.
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.WithError(err).Fatal("Failed to generate signing key")
	}

	addr := os.Getenv("AUTHSTUB_ADDR")
	if addr == "" {
		addr = ":9000"
	}

	accessTTL := 30 * time.Minute
	if v := os.Getenv("AUTHSTUB_ACCESS_TTL"); v != "" {
		if accessTTL, err = time.ParseDuration(v); err != nil {
			logger.WithError(err).Fatal("Invalid AUTHSTUB_ACCESS_TTL")
		}
	}

	revocations, publisher := backends(logger)
	defer publisher.Close()

	clock := clockwork.NewRealClock()
	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(privateKey, clock),
		revocations,
		events.NewWatermillPublisher(publisher),
		service.WithClock(clock),
		service.WithLogger(logger),
		service.WithTTL(accessTTL, 7*24*time.Hour),
	)
	catalog := service.NewCatalogService(clock, authService.IsPremium, service.SampleProducts(clock))

	if _, err := authService.Register(context.Background(), core.Registration{
		Email:    "demo@pricewatch.local",
		FullName: "Demo User",
		Phone:    "+22997000000",
		Password: "demo-password",
	}); err != nil {
		logger.WithError(err).Fatal("Failed to seed demo account")
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           transport.SetupRouter(authService, catalog, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	logger.WithField("addr", addr).WithField("access_ttl", accessTTL).Info("Listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

// backends picks Redis when REDIS_URL is set and in-memory otherwise
func backends(logger *log.Logger) (ports.RevocationStore, message.Publisher) {
	wmLogger := events.NewLogrusAdapter(logger)

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Info("REDIS_URL not set, using in-memory revocation store")
		return revocation.NewMemoryStore(nil), gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse Redis URL")
	}
	redisClient := redis.NewClient(opts)

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Redis publisher")
	}

	return revocation.NewRedisStore(redisClient), publisher
}
