package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tasklit/tasklit/internal/api"
	"github.com/tasklit/tasklit/internal/app"
	iauth "github.com/tasklit/tasklit/internal/auth"
	"github.com/tasklit/tasklit/internal/database"
	"github.com/tasklit/tasklit/internal/middleware"
	"github.com/tasklit/tasklit/internal/services"
	"github.com/tasklit/tasklit/pkg/logger"
	"github.com/tasklit/tasklit/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tasklit-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := database.Open(cfg.DatabaseServiceConfig())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeDatabase(db)
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.MailerSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; verification and reset codes will not be delivered")
	}

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	cookies := iauth.NewCookieManager(iauth.CookieManagerConfig{
		Secure:     cfg.Server.IsProduction(),
		SessionTTL: jwtService.SessionTTL(),
		MarkerTTL:  cfg.Auth.Codes.TTL,
	})

	authService, err := services.NewAuthService(db, mailer, services.WithCodeTTL(cfg.Auth.Codes.TTL))
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	todoService, err := services.NewTodoService(db)
	if err != nil {
		return fmt.Errorf("initialise todo service: %w", err)
	}

	var rateStore middleware.RateStore
	if cfg.RateLimit.Enabled {
		rateStore = middleware.NewMemoryRateStore()
	}

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		JWT:            jwtService,
		Cookies:        cookies,
		AuthService:    authService,
		TodoService:    todoService,
		RateStore:      rateStore,
		RateLimitMax:   cfg.RateLimit.Max,
		RateLimitEvery: cfg.RateLimit.Window,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		if info.IsDir() {
			return app.LoadConfig(path)
		}
		return app.LoadConfig(filepath.Dir(path))
	}
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.WithModule("bootstrap").Warn("close database", zap.Error(err))
	}
}
