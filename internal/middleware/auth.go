package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/go-storefront-api/internal/repository"
	"github.com/flicky/go-storefront-api/internal/token"
)

// swappable for tests
var timeNow = time.Now

// AuthMiddleware is the token-verification gate for protected endpoints. It
// accepts a bearer header or the token cookie, resolves the account, and
// rejects locked accounts even when the token itself is valid.
func AuthMiddleware(tokens *token.Service, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "access denied, no token provided")
			return
		}

		userID, err := tokens.VerifyAccess(tokenStr)
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "token expired")
				return
			}
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			abort(c, http.StatusInternalServerError, "server error during authentication")
			return
		}
		if user == nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		if user.Locked(timeNow()) {
			abort(c, http.StatusLocked, "account is temporarily locked")
			return
		}

		c.Set("userID", user.ID)
		c.Set("userRole", user.Role)
		c.Next()
	}
}

// OptionalAuth attaches identity when a valid token is present and otherwise
// lets the request through anonymously. It never aborts.
func OptionalAuth(tokens *token.Service, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			c.Next()
			return
		}
		userID, err := tokens.VerifyAccess(tokenStr)
		if err != nil {
			c.Next()
			return
		}
		user, err := userRepo.GetByID(c.Request.Context(), userID)
		if err == nil && user != nil && !user.Locked(timeNow()) {
			c.Set("userID", user.ID)
			c.Set("userRole", user.Role)
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserRole(c) != "admin" {
			abort(c, http.StatusForbidden, "access denied, admin privileges required")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return header[7:]
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": msg})
}

func GetUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get("userID")
	uid, _ := id.(uuid.UUID)
	return uid
}

func GetUserRole(c *gin.Context) string {
	role, _ := c.Get("userRole")
	r, _ := role.(string)
	return r
}

func IsAdmin(c *gin.Context) bool { return GetUserRole(c) == "admin" }
