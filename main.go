package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safemap/auth"
	"safemap/config"
	"safemap/database"
	"safemap/feed"
	"safemap/geoloc"
	"safemap/handlers"
	"safemap/markers"
	"safemap/metrics"
	"safemap/middleware"
	"safemap/models"
	"safemap/places"
	"safemap/rabbitmq"
	"safemap/uploads"
	"safemap/version"
	ws "safemap/websocket"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if cfg.LogLevel == "debug" {
		log.SetLevel(log.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting the safemap service...")

	// Database connection and schema
	db, err := database.Connect(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	store := database.NewReportStore(db)
	profiles := database.NewProfileStore(db)

	// WebSocket hub and marker projection
	hub := ws.NewHub()
	go hub.Run()

	projection := markers.NewProjection()

	// Live feed synchronizer: one snapshot per change, pushed to the
	// projection and every websocket client.
	synchronizer := feed.New(store, cfg.PollInterval,
		feed.WithOnSnapshot(func(snapshot models.Snapshot) {
			projection.Apply(snapshot)
			hub.BroadcastSnapshot(snapshot)
			metrics.SnapshotsDeliveredTotal.Inc()
			metrics.SnapshotSize.Set(float64(snapshot.Count))
		}),
		feed.WithOnError(func(err error) {
			metrics.FeedErrorsTotal.Inc()
		}),
	)
	if err := synchronizer.Start(); err != nil {
		log.Fatalf("Failed to start feed synchronizer: %v", err)
	}

	// Nearest police station lookup; optional when no API key is set.
	var locator handlers.NearestFinder
	if cfg.PlacesAPIKey != "" {
		client, err := places.NewGoogleClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL)
		if err != nil {
			log.Fatalf("Failed to create places client: %v", err)
		}
		locator = places.NewLocator(client, cfg.PlacesRadiusMeters)
	} else {
		log.Warn("PLACES_API_KEY not set; nearest station lookup disabled")
	}

	// Optional AMQP event publishing
	var publisher handlers.EventPublisher
	var amqpPublisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Failed to create AMQP publisher: %v", err)
		}
		publisher = amqpPublisher
		defer amqpPublisher.Close()
	}

	// Blob store for report and profile images
	uploadStore, err := uploads.NewStore(cfg.UploadsDir, cfg.UploadsBaseURL)
	if err != nil {
		log.Fatalf("Failed to create uploads store: %v", err)
	}

	// Device geolocation bridge
	deviceFeed := geoloc.NewDeviceFeed()
	resolver := geoloc.NewResolver(deviceFeed, cfg.LocateTimeout, cfg.AutoLocateTimeout)

	gate := auth.Gate{RequireVerifiedContributor: cfg.RequireVerifiedContributor}
	validator := auth.NewValidator(cfg.JWTSecret)

	h := handlers.NewHandlers(store, profiles, synchronizer, hub, locator,
		projection, uploadStore, publisher, gate, deviceFeed, resolver)

	router := setupRouter(h, validator, profiles, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	synchronizer.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupRouter(h *handlers.Handlers, validator *auth.Validator, profiles middleware.ProfileReader, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.CORSMiddleware())

	// Static preview for uploaded images
	router.Static(cfg.UploadsBaseURL, cfg.UploadsDir)

	router.GET("/health", h.HealthCheck)
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, version.Get("safemap"))
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authRequired := middleware.AuthMiddleware(validator, profiles)

	api := router.Group("/api/v3")
	{
		// Read access is unrestricted
		api.GET("/reports", h.ListReports)
		api.GET("/reports/markers", h.Markers)
		api.GET("/reports/listen", h.ListenReports)
		api.GET("/police/nearest", h.NearestPolice)

		// Writes require the identity provider's token
		api.POST("/reports", authRequired, h.CreateReport)
		api.GET("/reports/mine", authRequired, h.MyReports)
		api.DELETE("/reports/:id", authRequired, h.DeleteReport)
		api.POST("/reports/:id/image", authRequired, h.UploadReportImage)
		api.POST("/users/me/image", authRequired, h.UploadProfileImage)

		// Device position flows
		api.POST("/position", authRequired, h.PublishPosition)
		api.GET("/position/locate", h.Locate)
	}

	return router
}
