package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cstore/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubTokenSvc struct {
	claims *ports.TokenClaims
	err    error
}

func (s *stubTokenSvc) Generate(uuid.UUID, string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("not implemented")
}

func (s *stubTokenSvc) Validate(string) (*ports.TokenClaims, error) {
	return s.claims, s.err
}

func authRouter(tokenSvc ports.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestJWTAuth_ValidToken(t *testing.T) {
	userID := uuid.New()
	tokenSvc := &stubTokenSvc{claims: &ports.TokenClaims{UserID: userID, Role: "user"}}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	var gotUserID any
	var gotRole any
	r.GET("/protected", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		gotUserID, _ = c.Get(CtxUserID)
		gotRole, _ = c.Get(CtxUserRole)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, gotUserID)
	assert.Equal(t, "user", gotRole)
}

func TestJWTAuth_Rejections(t *testing.T) {
	tests := map[string]struct {
		header   string
		tokenSvc *stubTokenSvc
	}{
		"no header":       {"", &stubTokenSvc{}},
		"wrong scheme":    {"Basic dXNlcjpwYXNz", &stubTokenSvc{}},
		"bare token":      {"some-token", &stubTokenSvc{}},
		"too short":       {"Bearer", &stubTokenSvc{}},
		"rejected by svc": {"Bearer bad-token", &stubTokenSvc{err: errors.New("signature mismatch")}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := authRouter(tt.tokenSvc)
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := func(role string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			if role != "" {
				c.Set(CtxUserRole, role)
			}
		}, RequireAdmin(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		return w
	}

	assert.Equal(t, http.StatusOK, handler(RoleAdmin).Code)
	assert.Equal(t, http.StatusForbidden, handler("user").Code)
	assert.Equal(t, http.StatusForbidden, handler("").Code, "no role at all is not admin")
}

func TestMaxBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MaxBodySize(16))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	small := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("tiny"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, small)
	assert.Equal(t, http.StatusOK, w.Code)

	big := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("this body is far beyond the limit"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) {
		panic("something went sideways")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
	assert.NotContains(t, w.Body.String(), "sideways", "panic values never reach the client")
}
