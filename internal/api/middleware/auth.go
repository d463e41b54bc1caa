package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"guildhub/internal/db"
	"guildhub/internal/identity"
	"guildhub/internal/models"
	"guildhub/internal/utils/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

var log = logger.New("auth_middleware")

type AuthMiddleware struct {
	jwtSecret string
}

type Claims struct {
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email"`
	IsSystemAdmin bool   `json:"is_system_admin"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})

	if err != nil || !token.Valid {
		log.Error("Error parsing JWT token: %v", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	}

	// Verify auth transaction
	transaction := &models.AuthTransaction{}
	if err := db.DB.Where("user_id = ? AND token = ?",
		claims.UserID, tokenString).First(transaction).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Auth transaction not found")
	}

	// Verify user exists
	user := &models.User{}
	if err := db.DB.Where("id = ?", claims.UserID).First(user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
	}

	// Set context values
	c.Set("userID", user.ID)
	c.Set("displayName", user.DisplayName)
	c.Set("email", user.Email)
	c.Set("isSystemAdmin", user.IsSystemAdmin)

	return next(c)
}

// GetUserID Helper functions to get values from context
func GetUserID(c echo.Context) string {
	if id, ok := c.Get("userID").(string); ok {
		return id
	}
	return ""
}

func GetDisplayName(c echo.Context) string {
	if name, ok := c.Get("displayName").(string); ok {
		return name
	}
	return ""
}

func IsSystemAdmin(c echo.Context) bool {
	if isAdmin, ok := c.Get("isSystemAdmin").(bool); ok {
		return isAdmin
	}
	return false
}

// GetActor builds the caller identity handed down to the engine services.
func GetActor(c echo.Context) identity.Actor {
	return identity.Actor{
		UserID:      GetUserID(c),
		DisplayName: GetDisplayName(c),
		SystemAdmin: IsSystemAdmin(c),
	}
}
