package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/interfaces/http/response"
	"github.com/builders-garden/swifty/pkg/jwt"
	"github.com/builders-garden/swifty/pkg/logger"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	MerchantIDKey       = "merchantId"
)

// AuthMiddleware verifies the merchant bearer token
func AuthMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Error(c, domainerrors.Unauthorized("Authorization header must be: Bearer <token>"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			logger.Debug(c.Request.Context(), "Token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "Token has expired"
			}
			response.Error(c, domainerrors.Unauthorized(msg))
			c.Abort()
			return
		}

		c.Set(MerchantIDKey, claims.MerchantID)
		c.Next()
	}
}

// GetMerchantID returns the merchant authenticated by AuthMiddleware
func GetMerchantID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(MerchantIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
