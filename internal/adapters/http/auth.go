package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/edustream/liveclass/internal/core"
	"github.com/edustream/liveclass/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	userKey          = "user"
	viaCookieKey     = "auth_via_cookie"
	sessionUserKey   = "user_id"
	sessionExpiryKey = "exp"

	maxSessionAge = 7 * 24 * time.Hour
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator verifies access tokens minted by the main application and
// resolves them to a user.
type Authenticator struct {
	Secret     []byte
	Identities core.IdentityStore
	// AllowedOrigins are trusted for cookie-only WebSocket handshakes in
	// addition to the request's own host.
	AllowedOrigins []string

	cookie sessions.Options
	now    func() time.Time
}

func (a *Authenticator) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// Browsers cannot set headers on a WebSocket handshake.
	return c.Query("token")
}

// ParseToken returns the user_id claim and the expiry of a valid HS256 token.
func (a *Authenticator) ParseToken(raw string) (domain.UserID, time.Time, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", time.Time{}, fmt.Errorf("%w: bad exp claim", ErrUnauthenticated)
	}

	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return domain.UserID(v), exp.Time, nil
		}
	case json.Number:
		if _, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return domain.UserID(v.String()), exp.Time, nil
		}
	}
	return "", time.Time{}, fmt.Errorf("%w: missing user_id claim", ErrUnauthenticated)
}

// remember stores the user in the cookie session until the token expires.
func (a *Authenticator) remember(sess sessions.Session, id domain.UserID, exp time.Time) {
	age := min(exp.Sub(a.clock()), maxSessionAge)
	opts := a.cookie
	opts.MaxAge = int(age / time.Second)
	sess.Options(opts)
	sess.Set(sessionUserKey, string(id))
	sess.Set(sessionExpiryKey, exp.Unix())
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
}

func (a *Authenticator) forget(sess sessions.Session) {
	sess.Clear()
	opts := a.cookie
	opts.MaxAge = -1
	sess.Options(opts)
	_ = sess.Save()
}

// fromCookie returns the remembered user unless the token it came from has
// expired.
func (a *Authenticator) fromCookie(sess sessions.Session) (domain.UserID, bool) {
	id, _ := sess.Get(sessionUserKey).(string)
	exp, _ := sess.Get(sessionExpiryKey).(int64)
	if id == "" || exp == 0 {
		return "", false
	}
	if !a.clock().Before(time.Unix(exp, 0)) {
		a.forget(sess)
		return "", false
	}
	return domain.UserID(id), true
}

// Middleware authenticates by bearer token or, failing that, by the user
// remembered in the cookie session. A valid token refreshes the session.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		var id domain.UserID
		if raw := bearerToken(c); raw != "" {
			uid, exp, err := a.ParseToken(raw)
			if err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("token rejected")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			id = uid
			a.remember(sess, id, exp)
		} else if uid, ok := a.fromCookie(sess); ok {
			id = uid
			c.Set(viaCookieKey, true)
		} else {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthenticated.Error()})
			return
		}

		user, err := a.Identities.Identity(c.Request.Context(), id)
		switch {
		case errors.Is(err, core.ErrUnknownUser):
			a.forget(sess)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		case err != nil:
			log.Error().Err(err).Str("module", "adapters.http").Str("user_id", string(id)).Msg("identity lookup")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "identity unavailable"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// sameOrigin reports whether a cookie-authenticated request may open a
// WebSocket: the Origin must be the request's host or an allowed origin.
func (a *Authenticator) sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(a.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// RequireOriginForCookie rejects cross-site WebSocket handshakes that are
// authenticated only by the ambient cookie.
func (a *Authenticator) RequireOriginForCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(viaCookieKey) && !a.sameOrigin(c.Request) {
			log.Warn().Str("module", "adapters.http").Str("origin", c.GetHeader("Origin")).
				Msg("cross-site cookie handshake refused")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok || u.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
