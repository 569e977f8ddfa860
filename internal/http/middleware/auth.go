package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/asterlab/mission-gateway/internal/domain/identity"
	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("Middleware", "AuthMiddleware"),
		secret: []byte(secret),
	}
}

// RequireAuth resolves the bearer token into a principal and attaches it to
// the request context. Suspended accounts are rejected outright.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			response.RespondError(c, apierr.Unauthenticated(fmt.Errorf("missing or invalid token")))
			return
		}
		principal, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err.Error())
			response.RespondError(c, apierr.Unauthenticated(fmt.Errorf("missing or invalid token")))
			return
		}
		if !principal.Active() {
			response.RespondError(c, apierr.Forbiddenf("account is suspended"))
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// RequireAdmin runs after RequireAuth and gates admin-only routes.
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := ctxutil.GetPrincipal(c.Request.Context())
		if p == nil {
			response.RespondError(c, apierr.Unauthenticated(fmt.Errorf("missing or invalid token")))
			return
		}
		if !p.IsAdmin() {
			response.RespondError(c, apierr.Forbiddenf("admin role required"))
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*identity.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject %q", sub)
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return nil, fmt.Errorf("token missing username")
	}

	p := &identity.Principal{
		ID:       id,
		Username: username,
		Role:     identity.RoleGuest,
		Status:   identity.StatusActive,
	}
	if role, ok := claims["role"].(string); ok && role != "" {
		p.Role = identity.Role(role)
	}
	if status, ok := claims["status"].(string); ok && status != "" {
		p.Status = identity.Status(status)
	}
	return p, nil
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
