package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"hotel-api-go/config"
	"hotel-api-go/logcolors"
	"hotel-api-go/middleware"
	"hotel-api-go/services/notifier"
)

var conf = config.Get()

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel) // Set to InfoLevel (change to DebugLevel for detailed logs)

	if err := godotenv.Load(); err != nil {
		log.Warn("Error loading .env file, using environment variables")
	}
}

func main() {
	if err := initInfrastructure(); err != nil {
		notifier.PublishServerStartupFailed("infrastructure", err)
		log.Fatalf("%s Failed to initialize: %v", logcolors.LogServer, err)
	}

	startAlertHandler()

	if conf.Configuration.SupplierSandbox {
		log.Infof("%s Running with SANDBOX supplier credentials, booking finish calls are simulated", logcolors.LogSandbox)
	}

	router := mux.NewRouter()
	setupRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: false,
	})

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Configuration.RateLimitPerSecond), conf.Configuration.RateLimitBurstLimit,
		rate.Limit(conf.Configuration.CachedRateLimitPerSecond), conf.Configuration.CachedRateLimitBurstLimit,
	)

	// Middleware chain: API key auth, logging, CORS, rate limiting
	apiKeyMW := middleware.APIKeyMiddleware(
		conf.Configuration.APIKey,
		conf.Configuration.APIKeyRequired,
		[]string{"/", "/health"},
	)
	authedRouter := apiKeyMW(router)
	loggedRouter := middleware.LoggingMiddleware(authedRouter)
	corsHandler := c.Handler(loggedRouter)
	handler := limitMiddleware(corsHandler, limiter)

	// Flush persisted stats on shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Infof("%s Shutting down", logcolors.LogServer)
		if statsStore != nil {
			statsStore.Close()
		}
		os.Exit(0)
	}()

	notifier.PublishServerStarted(port, conf.Configuration.SupplierSandbox)
	log.Infof("%s Server listening on port %s", logcolors.LogServer, port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
