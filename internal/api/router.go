package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/tasklit/tasklit/internal/auth"
	"github.com/tasklit/tasklit/internal/handlers"
	"github.com/tasklit/tasklit/internal/middleware"
	"github.com/tasklit/tasklit/internal/models"
	"github.com/tasklit/tasklit/internal/services"
)

const maxBodyBytes = 5 << 20

// RouterConfig carries everything the router needs beyond the handlers.
type RouterConfig struct {
	DB             *gorm.DB
	JWT            *iauth.JWTService
	Cookies        *iauth.CookieManager
	AuthService    *services.AuthService
	TodoService    *services.TodoService
	RateStore      middleware.RateStore
	RateLimitMax   int
	RateLimitEvery time.Duration
	AllowedOrigins []string
}

// NewRouter assembles the gin engine: global middleware, auth and todo route
// groups, and the operational endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.AllowedOrigins}))
	r.Use(bodyLimit(maxBodyBytes))

	r.GET("/health", handlers.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(middleware.NotFoundHandler)

	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.JWT, cfg.Cookies)
	todoHandler := handlers.NewTodoHandler(cfg.TodoService)

	requireAuth := middleware.RequireAuth(cfg.JWT, cfg.Cookies, cfg.DB)
	codeLimiter := middleware.RateLimit(cfg.RateStore, cfg.RateLimitMax, cfg.RateLimitEvery)

	api := r.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", codeLimiter, authHandler.ResendVerification)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/forget-password", codeLimiter, authHandler.ForgotPassword)
		auth.POST("/reset-forget-password", authHandler.ResetForgottenPassword)

		auth.GET("/me", requireAuth, authHandler.Me)
		auth.PATCH("/profile", requireAuth, authHandler.UpdateProfile)
		auth.PATCH("/password", requireAuth, authHandler.ChangePassword)
		auth.POST("/account", requireAuth, authHandler.DeleteAccount)
	}

	todos := api.Group("/todos", requireAuth)
	{
		todos.GET("", todoHandler.List)
		todos.POST("", todoHandler.Create)
		todos.GET("/:id", todoHandler.Get)
		todos.PATCH("/:id", todoHandler.Update)
		todos.PATCH("/:id/toggle", todoHandler.Toggle)
		todos.DELETE("/:id", todoHandler.Delete)
	}

	admin := api.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/users", authHandler.ListUsers)
	}

	return r
}

func bodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
