package middleware

import (
	"crypto/subtle"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/http/response"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

const headerWebhookToken = "X-Gitlab-Token"

// WebhookSecret gates the CI event sinks on the shared secret configured in
// the pipeline project. The comparison is constant time.
func WebhookSecret(log *logger.Logger, secret string) gin.HandlerFunc {
	wl := log.With("Middleware", "WebhookSecret")
	expected := []byte(secret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			wl.Error("webhook secret is not configured; rejecting event")
			response.RespondError(c, apierr.Unauthenticated(fmt.Errorf("webhook secret not configured")))
			return
		}
		got := []byte(c.GetHeader(headerWebhookToken))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			wl.Warn("webhook token mismatch", "remote", c.ClientIP())
			response.RespondError(c, apierr.Unauthenticated(fmt.Errorf("invalid webhook token")))
			return
		}
		c.Next()
	}
}
