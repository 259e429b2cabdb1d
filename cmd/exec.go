package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"github.com/sheerif/eticketsv10/config"
	"github.com/sheerif/eticketsv10/handlers"
	"github.com/sheerif/eticketsv10/monitoring"
	"github.com/sheerif/eticketsv10/security"
	"github.com/sheerif/eticketsv10/services"
	"github.com/sheerif/eticketsv10/store"
	"github.com/sheerif/eticketsv10/utils"
)

func Start() error {
	// Load configuration
	cfg := config.LoadConfig()

	// Open the ticket store
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Initialize Redis (verification cache + rate limiting). The service
	// runs without it, caching is just an accelerator.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		defer redisClient.Close()
	}

	// Initialize PubNub gate feed when keys are configured
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	notifier := services.NewNotifier(pn, cfg.PubNubGateChannel)
	var cache *services.VerifyCache
	if redisClient != nil {
		cache = services.NewVerifyCache(redisClient, cfg.VerifyPositiveTTL, cfg.VerifyNegativeTTL)
	}
	issuer := services.NewIssuer(st, utils.NewQREncoder(), utils.NewFileMediaStore(cfg.MediaRoot), notifier, cfg.MaxIssueAttempts)
	verifier := services.NewVerifier(st, cache, notifier)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(verifier, issuer, st)
	itemHandler := handlers.NewItemHandler(st)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.VerifyRateLimit)

	// Register routes
	e := echo.New()

	ownerAuth := security.RequireOwner(cfg.JWTSecret)
	serviceAuth := security.RequireServiceKey(cfg.ServiceKeyHash)

	e.POST("/api/tickets/verify", ticketHandler.Verify, ownerAuth, rateLimiter.VerifyRateLimit())
	e.GET("/api/tickets/my", ticketHandler.MyTickets, ownerAuth)

	e.POST("/api/tickets/issue", ticketHandler.Issue, serviceAuth)
	e.POST("/api/items", itemHandler.Create, serviceAuth)
	e.GET("/api/items", itemHandler.List, serviceAuth)
	e.DELETE("/api/items/:id", itemHandler.Delete, serviceAuth)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		if err := st.Ping(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		if redisClient != nil {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return c.JSON(503, map[string]string{"status": "degraded", "error": err.Error()})
			}
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	// Metrics listener + background gauge collection
	if cfg.EnableMetrics {
		monitoring.NewMonitor(ctx, redisClient, st)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("metrics listener stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	slog.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
