package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tourbackend/internal/auth"
	"tourbackend/internal/domain"
	"tourbackend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStaticKeys(t *testing.T) {
	cfg := AuthConfig{AnonKey: "anon", ServiceRoleKey: "service"}

	rc, err := cfg.Resolve("anon")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnon, rc.Role)

	rc, err = cfg.Resolve(" service ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleServiceRole, rc.Role)

	_, err = cfg.Resolve("")
	assert.Error(t, err)
	_, err = cfg.Resolve("other")
	assert.Error(t, err)
}

func TestResolveDisabledAuth(t *testing.T) {
	rc, err := AuthConfig{}.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAnon, rc.Role)
}

func TestResolveDriverToken(t *testing.T) {
	cfg := AuthConfig{JWTSecret: "s", AnonKey: "ignored-when-jwt"}
	tok, err := auth.Sign("s", domain.RoleDriver, "drv-9", "", time.Hour, time.Now())
	require.NoError(t, err)

	rc, err := cfg.Resolve(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDriver, rc.Role)
	assert.Equal(t, "drv-9", rc.DriverID)

	_, err = cfg.Resolve("ignored-when-jwt")
	assert.Error(t, err)
}

func TestRequestIDPropagatesToContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = utils.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestApikeyHeaderAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(AuthConfig{AnonKey: "anon"}))
	r.GET("/", func(c *gin.Context) {
		rc, _ := Caller(c)
		c.String(http.StatusOK, string(rc.Role))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("apikey", "anon")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anon", w.Body.String())
}
