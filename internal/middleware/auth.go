package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"tableorder-service/pkg/jwtutil"
	"tableorder-service/pkg/logger"
	"tableorder-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	tenantIDKey = "tenant_id"

	BridgeSecretHeader = "X-Bridge-Secret"
)

// AuthMiddleware validates the staff JWT and requires a tenant claim
func AuthMiddleware(jwt *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing Authorization header")
				prometheus.RecordAuthFailure("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Warn("Invalid Authorization header format")
				prometheus.RecordAuthFailure("bad_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwt.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthFailure("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			if claims.TenantID == nil {
				log.Warn("JWT token does not contain tenant_id")
				prometheus.RecordAuthFailure("missing_tenant")
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required in the token"})
			}

			c.Set("user_id", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("user_role", claims.Role)
			c.Set(tenantIDKey, *claims.TenantID)

			scoped := log.With(zap.Uint("tenant_id", *claims.TenantID), zap.Uint("user_id", claims.UserID))
			c.Set(logger.EchoKey, scoped)
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), scoped)))

			return next(c)
		}
	}
}

// GetTenantIDFromContext retrieves the tenant ID from the context
// Returns 0, false if tenant ID is not found
func GetTenantIDFromContext(c echo.Context) (uint, bool) {
	tenantID, ok := c.Get(tenantIDKey).(uint)
	return tenantID, ok
}

// BridgeSecretMiddleware guards the routes the aggregator bridge calls. An empty
// secret rejects every request.
func BridgeSecretMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(BridgeSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.FromEcho(c).Warn("Rejected bridge request", zap.Bool("header_present", got != ""))
				prometheus.RecordAuthFailure("bridge_secret")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid bridge secret"})
			}
			return next(c)
		}
	}
}
