package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/process-tracker-api/internal/config"
	"github.com/yukikurage/process-tracker-api/internal/constants"
	"github.com/yukikurage/process-tracker-api/internal/database"
	"github.com/yukikurage/process-tracker-api/internal/handlers"
	"github.com/yukikurage/process-tracker-api/internal/lock"
	"github.com/yukikurage/process-tracker-api/internal/middleware"
	"github.com/yukikurage/process-tracker-api/internal/repository"
	"github.com/yukikurage/process-tracker-api/internal/routes"
	"github.com/yukikurage/process-tracker-api/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Identity locks and sessions share Redis when it is enabled
	var redisClient *redis.Client
	var locker lock.Locker
	var store sessions.Store
	if cfg.UseRedisLocks {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		locker = lock.NewRedisLocker(redisClient, cfg.IdentityLockTTL, cfg.IdentityLockWait)

		store, err = redisStore.NewStore(
			10,            // Redis pool size
			"tcp",         // network type
			cfg.RedisAddr, // Redis address from config
			"",            // username (empty for default user)
			cfg.RedisPassword,
			[]byte(cfg.SessionSecret), // authentication key
		)
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	} else {
		log.Println("Redis disabled: using in-process identity locks and cookie sessions")
		locker = lock.NewLocalLocker(cfg.IdentityLockWait)
		store = cookie.NewStore([]byte(cfg.SessionSecret))
	}

	// OAuth state only needs to survive one round trip to the provider
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	processRepo := repository.NewProcessRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	// Initialize services
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	authService := services.NewAuthService(userRepo, cfg.AdminEmails)
	merger := services.NewAccountMerger(db, userRepo, processRepo, feedbackRepo)
	linker := services.NewAccountLinker(db, userRepo, merger, locker)
	ghosts := services.NewGhostAccountFactory(db, userRepo, locker)
	processService := services.NewProcessService(processRepo)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(
		handlers.AuthHandlerConfig{
			FrontendURL:     cfg.FrontendURL,
			APIURL:          cfg.APIURL,
			BotSharedSecret: cfg.BotSharedSecret,
		},
		authService,
		ghosts,
		linker,
		tokenService,
		services.NewDiscordProvider(cfg.DiscordClientID, cfg.DiscordClientSecret),
		services.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
	)

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	routes.Setup(r, routes.Handlers{
		Auth:    authHandler,
		Process: handlers.NewProcessHandler(processService),
		Health:  handlers.NewHealthHandler(db, redisClient),
	}, tokenService, processService)

	// Start server
	log.Printf("Server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
