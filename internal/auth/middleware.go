package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gracechapel/backend/internal/database"
	"github.com/gracechapel/backend/internal/models"
)

// Middleware validates bearer tokens and resolves user identity into the
// request context. Token issuance lives in a separate identity service;
// this backend only verifies.
type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(jwtSecret string) *Middleware {
	return &Middleware{jwtSecret: []byte(jwtSecret)}
}

// ValidateToken parses and verifies an HS256 token, returning the user_id claim
func (m *Middleware) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user_id in token")
	}

	return userID, nil
}

// RequireAuth rejects requests without a valid bearer token
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.userIDFromRequest(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// OptionalAuth resolves the user when a valid token is present and stays
// silent otherwise. View and stats endpoints use this: anonymous traffic
// is first-class there.
func (m *Middleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := m.userIDFromRequest(c); err == nil {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose user lacks the admin flag.
// Must run after RequireAuth.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		var user models.User
		err := database.DB.Where("id = ?", userID).First(&user).Error
		if err != nil || !user.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (m *Middleware) userIDFromRequest(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("no token provided")
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return "", errors.New("malformed authorization header")
	}

	return m.ValidateToken(tokenString)
}
