package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "commentboard/docs"
	"commentboard/internal/config"
	"commentboard/internal/handlers"
	"commentboard/internal/logging"
	"commentboard/internal/middleware"
	"commentboard/internal/ratelimit"
	"commentboard/internal/repositories"
	"commentboard/internal/routes"
	"commentboard/internal/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg    *config.Config
	log    logging.Logger
	repos  repositories.Manager
	router *gin.Engine

	redis  *redis.Client
	client *asynq.Client
	queue  *services.QueueServer
	local  *services.LocalDispatcher
}

// NewApp wires storage, mail delivery, services and routes. Without a
// redis URL mail goes out from a goroutine and attempts are not throttled.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	// === DB ===
	if cfg.Database.DSN == config.MemoryDSN {
		log.Warn(ctx, "using in-memory store, data is lost on exit")
		a.repos = repositories.NewMemoryManager()
	} else {
		pg, err := repositories.NewPostgresManager(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		a.repos = pg
	}
	if cfg.Database.RunMigrations {
		if err := a.repos.RunMigrations(ctx); err != nil {
			_ = a.repos.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	// === Mail + limiter ===
	emails := services.NewEmailService(cfg.Email, log)
	var (
		mailer  services.MailDispatcher
		limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	)
	if cfg.Queue.RedisURL != "" {
		opt, err := asynq.ParseRedisURI(cfg.Queue.RedisURL)
		if err != nil {
			_ = a.repos.Close()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisOpt, err := redis.ParseURL(cfg.Queue.RedisURL)
		if err != nil {
			_ = a.repos.Close()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		a.client = asynq.NewClient(opt)
		a.queue = services.NewQueueServer(opt, cfg.Queue.Concurrency, services.NewMailWorker(emails, log), log)
		a.redis = redis.NewClient(redisOpt)
		mailer = services.NewAsynqDispatcher(a.client)
		limiter = ratelimit.NewRedisLimiter(a.redis, "attempts", cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)
	} else {
		a.local = services.NewLocalDispatcher(emails, log)
		mailer = a.local
	}

	// === Services ===
	sessions := services.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	accounts := services.NewAccountService(
		a.repos,
		services.NewECodeService(a.repos),
		services.NewNonceService(a.repos, cfg.Auth.ConfirmationWindow),
		sessions,
		mailer,
		cfg.Auth,
		log,
	)
	comments := services.NewCommentService(a.repos)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(accounts, log)
	commentHandler := handlers.NewCommentHandler(comments, cfg.Server.MaxCommentBytes, log)
	healthHandler := handlers.NewHealthHandler(a.repos)

	a.router = NewRouter(cfg)
	routes.SetupRoutes(a.router, authHandler, commentHandler, healthHandler, sessions, limiter, log)
	return a, nil
}

// NewRouter returns the engine with the shared middleware installed.
func NewRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.ExposeHeaders = []string{handlers.HeaderEmailAttempt, middleware.HeaderRequestID}
	router.Use(cors.New(corsConfig))

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return router
}

func (a *App) Handler() http.Handler { return a.router }

// Run serves until ctx is cancelled, then drains requests and workers.
func (a *App) Run(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info(ctx, "server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error(shutdownCtx, "http shutdown", "err", err)
	}
	a.Close()
	a.log.Info(shutdownCtx, "server stopped")
	return runErr
}

// Close stops background mail delivery and releases connections.
func (a *App) Close() {
	if a.queue != nil {
		a.queue.Shutdown()
	}
	if a.local != nil {
		a.local.Wait()
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.repos.Close(); err != nil {
		a.log.Error(context.Background(), "db close", "err", err)
	}
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run is the process entry point.
func Run() {
	cfg := config.LoadConfig()
	log := logging.New(cfg.Server.GinMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := NewApp(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "startup failed", "err", err)
		os.Exit(1)
	}
	a.initSignalHandler(cancel)

	if err := a.Run(ctx); err != nil {
		log.Error(ctx, "server failed", "err", err)
		os.Exit(1)
	}
}
