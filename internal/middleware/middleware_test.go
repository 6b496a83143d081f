package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/vocab-quiz/internal/config"
	"github.com/stemsi/vocab-quiz/internal/response"
	"github.com/stemsi/vocab-quiz/internal/service"
)

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func errorCodeOf(t *testing.T, rec *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var env response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestRequireJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newAuth()

	r := gin.New()
	r.GET("/me", RequireJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c))
	})
	r.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c))
	})

	token, err := auth.GenerateToken("learner-7", "Ana")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		header string
		code   int
		errC   response.ErrCode
		body   string
	}{
		{name: "Missing", path: "/me", code: http.StatusUnauthorized, errC: response.ErrTokenRequired},
		{name: "Garbage", path: "/me", header: "Bearer nope", code: http.StatusUnauthorized, errC: response.ErrTokenInvalid},
		{name: "QueryNotAcceptedForREST", path: "/me?token=" + token, code: http.StatusUnauthorized, errC: response.ErrTokenRequired},
		{name: "Valid", path: "/me", header: "Bearer " + token, code: http.StatusOK, body: "learner-7"},
		{name: "WSMissing", path: "/ws", code: http.StatusUnauthorized, errC: response.ErrTokenRequired},
		{name: "WSValid", path: "/ws?token=" + token, code: http.StatusOK, body: "learner-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.errC != "" {
				if got := errorCodeOf(t, rec); got != tt.errC {
					t.Errorf("expected %s, got %s", tt.errC, got)
				}
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("expected the first two requests through")
	}
	if rl.allow("a") {
		t.Error("expected the third request to be limited")
	}
	if !rl.allow("b") {
		t.Error("buckets must be per key")
	}

	now = now.Add(time.Minute)
	if !rl.allow("a") {
		t.Error("expected a refill after one interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("expected stale visitors removed, got %d", len(rl.visitors))
	}
}

func TestBrotli(t *testing.T) {
	gin.SetMode(gin.TestMode)
	large := strings.Repeat("vocabulary ", 400)

	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 1024}))
	r.GET("/large", func(c *gin.Context) {
		// Two writes: the second lands after compression started.
		c.Writer.WriteString(large)
		c.Writer.WriteString("tail")
	})
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	get := func(path string, headers map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	t.Run("CompressesLargeBodies", func(t *testing.T) {
		rec := get("/large", map[string]string{"Accept-Encoding": "gzip, br;q=1.0"})
		if rec.Header().Get("Content-Encoding") != "br" {
			t.Fatalf("expected br encoding, got %q", rec.Header().Get("Content-Encoding"))
		}
		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		if string(plain) != large+"tail" {
			t.Errorf("round trip mismatch: %d bytes", len(plain))
		}
	})

	t.Run("SmallBodiesPassThrough", func(t *testing.T) {
		rec := get("/small", map[string]string{"Accept-Encoding": "br"})
		if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != "ok" {
			t.Errorf("expected plain body, got %q (%q)", rec.Body.String(), rec.Header().Get("Content-Encoding"))
		}
	})

	t.Run("NoAcceptEncoding", func(t *testing.T) {
		rec := get("/large", nil)
		if rec.Header().Get("Content-Encoding") != "" {
			t.Error("expected no compression without Accept-Encoding: br")
		}
	})

	t.Run("WebSocketUpgradeSkipped", func(t *testing.T) {
		rec := get("/large", map[string]string{"Accept-Encoding": "br", "Upgrade": "websocket"})
		if rec.Header().Get("Content-Encoding") != "" {
			t.Error("expected upgrade requests to pass through")
		}
	})
}
