// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"time"

	_ "press/docs" // swagger docs
	"press/internal/bootstrap"
	"press/internal/config"
	"press/internal/featureflags"
	"press/internal/mention"
	"press/internal/middleware"
	"press/internal/models"
	"press/internal/notifications"
	"press/internal/repository"
	"press/internal/service"
	"press/internal/tree"
	"press/internal/verification"

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

	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	engagementRepo   repository.EngagementRepository
	commentRepo      repository.CommentRepository
	notificationRepo repository.NotificationRepository

	notifier *notifications.Notifier
	hub      *notifications.Hub
	flags    *featureflags.Manager

	notificationService *service.NotificationService
	engagementService   *service.EngagementService
	postService         *service.PostService
	commentService      *service.CommentService
	feedService         *service.FeedService
	userService         *service.UserService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// A nil redis client disables cross-instance fan-out; live sockets on this
// instance are not fed in that case.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		promMiddleware:   middleware.InitMetrics("press-api"),
		userRepo:         repository.NewUserRepository(db),
		postRepo:         repository.NewPostRepository(db),
		engagementRepo:   repository.NewEngagementRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		notifier:         notifications.NewNotifier(redisClient),
		hub:              notifications.NewHub(),
		flags:            featureflags.NewManager(cfg.FeatureFlags),
	}

	detector := mention.NewDetector(s.userRepo)
	order := tree.ParseOrder(cfg.CommentOrder)

	s.notificationService = service.NewNotificationService(s.notificationRepo, s.notifier)
	s.engagementService = service.NewEngagementService(s.engagementRepo, s.postRepo, s.notificationService)
	s.postService = service.NewPostService(s.postRepo, s.commentRepo, detector, s.notificationService)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo, s.userRepo, detector,
		s.notificationService, s.engagementService, order)
	s.feedService = service.NewFeedService(s.postRepo, cfg.TrendGravity)
	s.userService = service.NewUserService(s.userRepo, s.postRepo, s.commentRepo, s.engagementRepo,
		s.engagementService, verification.NewSender(cfg, verification.NewMailer(cfg)), cfg)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagate request, trace and user IDs into the user context
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application.
// Fiber matches in registration order, so fixed segments such as /posts/me
// are registered before the /:id routes that would shadow them.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")
	auth := middleware.AuthRequired

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Press Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/register", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "register"), s.Register)
	authGroup.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	authGroup.Get("/verify/:token", s.Verify)

	// Profiles
	api.Get("/profile", auth, s.GetMyProfile)
	api.Put("/profile", auth, s.UpdateMyProfile)
	api.Put("/profile/picture", auth, middleware.RateLimit(
		s.redis, 10, 10*time.Minute, "profile_picture"), s.UpdateMyPicture)
	api.Get("/profiles/:id", s.GetProfile)
	api.Delete("/profiles/:id", auth, s.DeleteProfile)

	// Posts
	posts := api.Group("/posts")
	posts.Post("/", auth, s.CreatePost)
	posts.Put("/", auth, s.ProfileGate(), s.UpdateMyPost)
	posts.Get("/me", auth, s.ProfileGate(), s.GetMyPost)
	posts.Get("/:id/html", middleware.OptionalAuth, s.FeatureRequired(featureflags.MarkdownHTML), s.GetPostHTML)
	posts.Post("/:id/like", auth, s.ToggleEngagement(models.EngagementLike))
	posts.Put("/:id/like", auth, s.SetEngagement(models.EngagementLike))
	posts.Post("/:id/follow", auth, s.ToggleEngagement(models.EngagementFollow))
	posts.Put("/:id/follow", auth, s.SetEngagement(models.EngagementFollow))
	posts.Get("/:id/comments", s.GetComments)
	posts.Post("/:id/comments", auth, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Get("/:id", middleware.OptionalAuth, s.ProfileGate(), s.GetPost)

	api.Put("/comments/:id/parent", auth, s.MoveComment)

	// Feeds
	feed := api.Group("/feed")
	feed.Get("/trending", s.GetTrending)
	feed.Get("/following", auth, s.GetFollowing)

	// Notifications
	api.Get("/news", auth, s.ProfileGate(), s.GetNews)
	api.Get("/notifications/unread", auth, s.GetUnreadCount)

	api.Get("/features", middleware.OptionalAuth, s.GetFeatures)
	api.Get("/ws", middleware.WebSocketAuthRequired, s.FeatureRequired(featureflags.LiveNews), s.NotificationsWebSocket())

	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/posts/:id/recount", s.RecountPost)
	admin.Get("/posts/:id/comments/tree", s.VerifyCommentTree)
	admin.Post("/posts/:id/comments/tree", s.RebuildCommentTree)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the instance serves requests but cannot fan out notifications.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
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

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Press API",
		BodyLimit: 8 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.redis != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start notification wiring", slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down notification hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
