package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/pkg/logger"
	"github.com/d60-Lab/storefront/pkg/response"
)

// Auth 校验 Bearer token 并加载用户，写入请求上下文
func Auth(tokens *auth.TokenIssuer, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		id, err := claims.UserID()
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		ctx := c.Request.Context()
		user, err := users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			response.Unauthorized(c, "user no longer exists")
			return
		}
		if err != nil {
			response.InternalError(c, err)
			return
		}

		log := logger.FromContext(ctx).With(zap.Uint("user_id", user.ID))
		ctx = auth.WithUser(logger.WithContext(ctx, log), user)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// RequireAdmin 要求管理员，以数据库中的角色为准
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := auth.UserFrom(c.Request.Context())
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}
		if !user.IsAdmin {
			response.Forbidden(c, "admin privileges required")
			return
		}
		c.Next()
	}
}
