package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init: %v", err)
	}
	return log
}

func webhookRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookSecret(testLog(t), secret))
	r.POST("/hook", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestWebhookSecretAcceptsMatchingToken(t *testing.T) {
	t.Parallel()
	r := webhookRouter(t, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/hook", nil)
	req.Header.Set("X-Gitlab-Token", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
}

func TestWebhookSecretRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong token", "s3cret", "nope"},
		{"missing token", "s3cret", ""},
		{"secret unset", "", "anything"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := webhookRouter(t, tc.secret)

			req := httptest.NewRequest(http.MethodPost, "/hook", nil)
			if tc.token != "" {
				req.Header.Set("X-Gitlab-Token", tc.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}
