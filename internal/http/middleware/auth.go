package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"tourbackend/internal/auth"
	"tourbackend/internal/domain"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// AuthConfig holds the project keys. With JWTSecret set every bearer must be a
// signed token; otherwise bearers are matched against the static keys.
type AuthConfig struct {
	JWTSecret      string
	AnonKey        string
	ServiceRoleKey string
}

func (a AuthConfig) disabled() bool {
	return a.JWTSecret == "" && a.AnonKey == "" && a.ServiceRoleKey == ""
}

var errMissingKey = errors.New("missing bearer token")

// Resolve maps a bearer token onto the caller it represents.
func (a AuthConfig) Resolve(token string) (domain.RequestContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		if a.disabled() {
			return domain.RequestContext{Role: domain.RoleAnon}, nil
		}
		return domain.RequestContext{}, errMissingKey
	}

	if a.JWTSecret != "" {
		claims, err := auth.Parse(a.JWTSecret, token)
		if err != nil {
			return domain.RequestContext{}, err
		}
		rc := domain.RequestContext{Role: claims.Role, Subject: claims.Subject}
		if claims.Role == domain.RoleDriver {
			rc.DriverID = claims.Subject
		}
		return rc, nil
	}

	switch {
	case a.ServiceRoleKey != "" && equalKey(token, a.ServiceRoleKey):
		return domain.RequestContext{Role: domain.RoleServiceRole}, nil
	case a.AnonKey != "" && equalKey(token, a.AnonKey):
		return domain.RequestContext{Role: domain.RoleAnon}, nil
	case a.disabled():
		return domain.RequestContext{Role: domain.RoleAnon}, nil
	}
	return domain.RequestContext{}, errors.New("invalid api key")
}

func equalKey(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return c.GetHeader("apikey")
}

// Authenticate resolves the caller for every request in the group and rejects
// unknown keys with 401.
func Authenticate(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, err := cfg.Resolve(bearer(c))
		if err != nil {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		c.Set(callerKey, rc)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
// service_role is always accepted.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := Caller(c)
		if !ok {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", errMissingKey.Error())
			return
		}
		if rc.Role == domain.RoleServiceRole {
			c.Next()
			return
		}
		for _, r := range roles {
			if rc.Role == r {
				c.Next()
				return
			}
		}
		abortAuth(c, http.StatusForbidden, "forbidden", "this operation requires the "+roleList(roles)+" role")
	}
}

func roleList(roles []domain.Role) string {
	if len(roles) == 0 {
		return string(domain.RoleServiceRole)
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}

// Caller returns the authenticated caller set by Authenticate.
func Caller(c *gin.Context) (domain.RequestContext, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.RequestContext{}, false
	}
	rc, ok := v.(domain.RequestContext)
	return rc, ok
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"code":       code,
		"request_id": GetRequestID(c),
	})
}
