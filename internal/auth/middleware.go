package auth

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID    = "user_id"
	ctxUserEmail = "user_email"
	ctxUserRole  = "user_role"
)

// Caller identifies the authenticated user an operation runs for.
type Caller struct {
	UserID int
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanManage reports whether the caller may administer a resource owned by ownerID.
func (c Caller) CanManage(ownerID int) bool {
	return c.IsAdmin() || c.UserID == ownerID
}

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			abort(c, http.StatusUnauthorized, "token is empty")
			return
		}

		claims, err := ValidateToken(token, secret)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "token expired")
			} else {
				abort(c, http.StatusUnauthorized, "invalid or malformed token")
			}
			return
		}

		if claims.TokenType != tokenTypeAccess {
			abort(c, http.StatusUnauthorized, "access token required")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserRole, claims.Role)

		c.Next()
	}
}

// RequireRole lets the request through when the caller holds any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRole(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "user role not found")
			return
		}

		if !slices.Contains(roles, role) {
			abort(c, http.StatusForbidden, "insufficient permissions")
			return
		}

		c.Next()
	}
}

func GetUserID(c *gin.Context) (int, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func GetUserRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

// CallerFromContext builds the Caller set by AuthMiddleware.
func CallerFromContext(c *gin.Context) (Caller, bool) {
	id, ok := GetUserID(c)
	if !ok {
		return Caller{}, false
	}
	role, ok := GetUserRole(c)
	if !ok {
		return Caller{}, false
	}
	return Caller{UserID: id, Role: role}, true
}

// SetCaller stores a caller on the context the same way AuthMiddleware does.
func SetCaller(c *gin.Context, caller Caller) {
	c.Set(ctxUserID, caller.UserID)
	c.Set(ctxUserRole, caller.Role)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
