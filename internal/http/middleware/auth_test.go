package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/asterlab/mission-gateway/internal/platform/ctxutil"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func authRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	am := NewAuthMiddleware(testLog(t), testSecret)
	r.GET("/me", am.RequireAuth(), func(c *gin.Context) {
		p := ctxutil.GetPrincipal(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "username": p.Username})
	})
	r.GET("/admin", am.RequireAuth(), am.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doAuthed(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuthResolvesPrincipal(t *testing.T) {
	t.Parallel()
	r := authRouter(t)
	token := signToken(t, jwt.MapClaims{
		"sub":      "42",
		"username": "rdoe",
		"role":     "member",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	rec := doAuthed(r, "/me", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireAuthRejections(t *testing.T) {
	t.Parallel()
	r := authRouter(t)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", signToken(t, jwt.MapClaims{"sub": "42", "username": "rdoe"}, "other"), http.StatusUnauthorized},
		{"expired", signToken(t, jwt.MapClaims{"sub": "42", "username": "rdoe", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), http.StatusUnauthorized},
		{"no username", signToken(t, jwt.MapClaims{"sub": "42"}, testSecret), http.StatusUnauthorized},
		{"suspended", signToken(t, jwt.MapClaims{"sub": "42", "username": "rdoe", "status": "suspended"}, testSecret), http.StatusForbidden},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := doAuthed(r, "/me", tc.token)
			if rec.Code != tc.status {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tc.status)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()
	r := authRouter(t)

	member := signToken(t, jwt.MapClaims{"sub": "1", "username": "m", "role": "member"}, testSecret)
	admin := signToken(t, jwt.MapClaims{"sub": "2", "username": "a", "role": "admin"}, testSecret)

	if rec := doAuthed(r, "/admin", member); rec.Code != http.StatusForbidden {
		t.Fatalf("member should be forbidden: got=%d", rec.Code)
	}
	if rec := doAuthed(r, "/admin", admin); rec.Code != http.StatusOK {
		t.Fatalf("admin should pass: got=%d", rec.Code)
	}
}
