package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/tasklit/tasklit/internal/auth"
	"github.com/tasklit/tasklit/internal/models"
	"github.com/tasklit/tasklit/pkg/errors"
	"github.com/tasklit/tasklit/pkg/response"
)

const (
	CtxUserIDKey = "userID"
	CtxUserKey   = "currentUser"
	CtxRoleKey   = "userRole"
)

// RequireAuth enforces session authentication. The token comes from the
// session cookie, falling back to an Authorization bearer header for
// non-browser clients. The carried user is loaded fresh on every request so
// a deleted account is locked out immediately. Unverified users are rejected
// with 403.
func RequireAuth(jwt *iauth.JWTService, cookies *iauth.CookieManager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, cookies)
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.ValidateSessionToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", claims.UserID).Error; err != nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !user.IsVerified {
			response.Error(c, errors.ErrAccountNotVerified)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxUserIDKey, user.ID)
		c.Set(CtxUserKey, &user)
		c.Set(CtxRoleKey, user.Role)

		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not in the allowed set.
// It must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(CtxRoleKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		role, _ := v.(string)
		if _, ok := allowed[role]; !ok {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}

func extractToken(c *gin.Context, cookies *iauth.CookieManager) string {
	if token, ok := cookies.SessionToken(c); ok {
		return token
	}

	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}
