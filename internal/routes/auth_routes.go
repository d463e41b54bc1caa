package routes

import (
	"guildhub/internal/api/middleware"
	"guildhub/internal/config"
	"guildhub/internal/handlers"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func SetupAuthRoutes(e *echo.Echo, db *gorm.DB, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db)

	base := e.Group("/api/v1")

	// Public auth routes group
	auth := base.Group("/auth")
	users := base.Group("/users")

	// Public routes (no auth required)
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/password-reset", authHandler.RequestPasswordReset)
	auth.POST("/password-reset/verify", authHandler.VerifyResetCode)
	auth.POST("/refresh", authHandler.RefreshToken)

	// Protected user routes (require authentication)
	protected := users.Group("")
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	protected.Use(authMiddleware.Middleware())

	protected.GET("/me", authHandler.GetMe)
}
