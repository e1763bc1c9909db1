package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret string, claims JWTClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return s
}

func validClaims(roles ...string) JWTClaims {
	return JWTClaims{
		UserID: "u-1",
		Name:   "Operator",
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(KeyUserID))
	})
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))

	w := serve(r, "/", signToken(t, testSecret, validClaims()))
	if w.Code != http.StatusOK || w.Body.String() != "u-1" {
		t.Fatalf("Expected 200 with user id, got %d %q", w.Code, w.Body.String())
	}

	if w := serve(r, "/", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if w := serve(r, "/", signToken(t, "other-secret", validClaims())); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong secret, got %d", w.Code)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	if w := serve(r, "/", signToken(t, testSecret, expired)); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for expired token, got %d", w.Code)
	}
}

func TestJWTAuthQueryToken(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))

	w := serve(r, "/?token="+signToken(t, testSecret, validClaims()), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 with query token, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(testSecret), RequireRole("programmer"))

	cases := []struct {
		roles []string
		want  int
	}{
		{[]string{"programmer"}, http.StatusOK},
		{[]string{"admin"}, http.StatusOK},
		{[]string{"operator"}, http.StatusForbidden},
		{nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		w := serve(r, "/", signToken(t, testSecret, validClaims(tc.roles...)))
		if w.Code != tc.want {
			t.Errorf("roles %v: expected %d, got %d", tc.roles, tc.want, w.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := newRouter(RequestID())

	w := serve(r, "/", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("Expected propagated id, got %q", got)
	}
}
