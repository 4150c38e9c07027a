// Package server contains the HTTP handlers for the marketplace API.
package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	_ "koydenal/docs" // swagger docs
	"koydenal/internal/cache"
	"koydenal/internal/config"
	"koydenal/internal/database"
	"koydenal/internal/featureflags"
	"koydenal/internal/middleware"
	"koydenal/internal/models"
	"koydenal/internal/notifications"
	"koydenal/internal/repository"
	"koydenal/internal/service"
	"koydenal/internal/session"
	"koydenal/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	listingRepo  repository.ListingRepository
	categoryRepo repository.CategoryRepository
	store        storage.Store
	featureFlags *featureflags.Manager
	notifier     *notifications.Notifier

	sessions   *session.Manager
	adminGate  *session.AdminGate
	detachGate func()

	listingService  *service.ListingService
	guestService    *service.GuestService
	approvalService *service.ApprovalService
	browseService   *service.BrowseService
	ownerService    *service.OwnerService
	userService     *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	store, err := storage.NewDiskStore(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	server, err := NewServerWithDeps(cfg, db, cache.GetClient(), store)
	if err != nil {
		return nil, err
	}
	server.promMiddleware = middleware.InitMetrics("koydenal-api")
	return server, nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests pass an in-memory store and a nil or miniredis-backed client.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	if store == nil {
		store = storage.NewMemoryStore(cfg.StoragePublicURL)
	}

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	notifier := notifications.NewNotifier(redisClient)

	sessions := session.NewManager(userRepo, redisClient, session.Config{
		Secret: cfg.JWTSecret,
		TTL:    time.Duration(cfg.JWTTTLHours) * time.Hour,
	})
	gate := session.NewAdminGate(userRepo, session.NewAdminState())

	images := storage.ImageProcessor{
		MaxBytes:     int64(cfg.ImageMaxUploadSizeMB) << 20,
		MaxDimension: cfg.ImageMaxDimension,
	}

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        redisClient,
		userRepo:     userRepo,
		listingRepo:  listingRepo,
		categoryRepo: categoryRepo,
		store:        store,
		featureFlags: flags,
		notifier:     notifier,
		sessions:     sessions,
		adminGate:    gate,
		detachGate:   gate.Attach(sessions),
	}
	s.listingService = service.NewListingService(
		listingRepo, categoryRepo, userRepo, store, images, flags, notifier,
		service.ListingServiceConfig{
			UploadConcurrency: cfg.UploadConcurrency,
			MaxImages:         cfg.MaxImagesPerListing,
		},
	)
	s.guestService = service.NewGuestService(listingRepo, categoryRepo, store)
	s.approvalService = service.NewApprovalService(listingRepo, userRepo, store, notifier, cfg.FeaturedDays)
	s.browseService = service.NewBrowseService(listingRepo, categoryRepo)
	s.ownerService = service.NewOwnerService(listingRepo, categoryRepo, favoriteRepo, messageRepo, store)
	s.userService = service.NewUserService(userRepo)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Uploaded images are embedded cross-origin by the storefront.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so error responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + listingSecretHeader,
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Çok fazla istek, lütfen biraz sonra tekrar deneyin",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", s.AuthRequired(), s.AdminRequired(), monitor.New(monitor.Config{
		Title: "KöydenAL API Metrics",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	app.Get(s.uploadsPrefix()+"/*", s.ServeUpload)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, middleware.RegisterLimit), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.LoginLimit), s.Login)
	auth.Post("/admin/login", middleware.RateLimit(s.redis, middleware.AdminLoginLimit), s.AdminLogin)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	auth.Get("/me", s.AuthRequired(), s.Me)

	// Public catalogue
	api.Get("/categories", s.GetCategories)
	api.Get("/feature-flags", s.OptionalAuth(), s.GetFeatureFlags)

	listings := api.Group("/listings")
	listings.Get("/", middleware.RateLimit(s.redis, middleware.SearchLimit(s.config.SearchRatePerMinute)), s.GetListings)
	listings.Post("/", s.OptionalAuth(), middleware.RateLimit(s.redis, middleware.SubmitLimit(s.config.SubmitRatePerHour)), s.SubmitListing)
	// Specific /:id/:resource routes before the generic /:id route
	listings.Post("/:id/favorite", s.AuthRequired(), s.AddFavorite)
	listings.Delete("/:id/favorite", s.AuthRequired(), s.RemoveFavorite)
	listings.Post("/:id/messages", s.OptionalAuth(), middleware.RateLimit(s.redis, middleware.MessageLimit), s.SendListingMessage)
	listings.Get("/:id", s.OptionalAuth(), s.GetListing)

	// Guest capability routes
	guest := api.Group("/guest/listings")
	guest.Post("/", middleware.RateLimit(s.redis, middleware.SubmitLimit(s.config.SubmitRatePerHour)), s.SubmitGuestListing)
	guest.Get("/:id", s.GetGuestListing)
	guest.Put("/:id", s.UpdateGuestListing)
	guest.Delete("/:id", s.DeleteGuestListing)

	// Owner self-service
	me := api.Group("/me", s.AuthRequired())
	me.Get("/listings", s.GetMyListings)
	me.Put("/listings/:id", s.UpdateMyListing)
	me.Delete("/listings/:id", s.DeleteMyListing)
	me.Get("/favorites", s.GetMyFavorites)
	me.Get("/messages", s.GetMyMessages)

	// Admin panel
	admin := api.Group("/admin", s.AuthRequired(), s.AdminRequired())
	admin.Get("/stats", s.GetAdminStats)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/listings", s.GetAdminListings)
	admin.Post("/listings/:id/approve", s.ApproveListing)
	admin.Post("/listings/:id/reject", s.RejectListing)
	admin.Post("/listings/:id/featured", s.SetListingFeatured)
	admin.Post("/listings/:id/opportunity", s.SetListingOpportunity)
	admin.Get("/listings/:id/actions", s.GetListingActions)
	admin.Delete("/listings/:id", s.DeleteListing)
	admin.Get("/users", s.GetAdminUsers)
	admin.Post("/users/:id/approve", s.ApproveUser)
	admin.Post("/users/:id/reject", s.RejectUser)
	admin.Delete("/users/:id", s.DeleteUser)
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis. Redis is optional: without it
// the API runs uncached and rate limits fail open, so it only degrades readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus != "healthy":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// NewApp builds a Fiber app with the API error handler and body limit.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := (s.config.ImageMaxUploadSizeMB*max(s.config.MaxImagesPerListing, 1) + 1) << 20
	return fiber.New(fiber.Config{
		AppName:   "KöydenAL API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.NewApp()
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if err := s.notifier.Subscribe(s.shutdownCtx, s.logNotification); err != nil {
		log.Printf("failed to subscribe to listing notifications: %v", err)
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

func (s *Server) logNotification(channel string, ev notifications.Event) {
	middleware.Logger.Info("listing notification",
		slog.String("channel", channel),
		slog.String("type", ev.Type),
		slog.String("listing_id", ev.ListingID.String()),
		slog.String("status", string(ev.Status)),
	)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	if s.detachGate != nil {
		s.detachGate()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
