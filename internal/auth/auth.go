// Package auth reads the principal authenticated by the identity provider,
// either from the session cookie or from a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/yatube/yatube/internal/models"
	"github.com/yatube/yatube/pkg/config"
	"github.com/yatube/yatube/pkg/logging"
)

const (
	// SessionName is the cookie holding the session.
	SessionName = "yatube-session"

	isAuthKey   = "is_authenticated"
	usernameKey = "username"

	currentUserKey = "currentUser"
)

// UserProvisioner returns the local user row for a principal, creating it on first sight.
type UserProvisioner interface {
	Ensure(ctx context.Context, username string) (*models.User, error)
}

// Identity authenticates requests.
type Identity struct {
	store     *sessions.CookieStore
	jwtSecret []byte
	users     UserProvisioner
	logger    *zap.Logger
}

// New creates an Identity. An empty session key gets a random one, so
// sessions do not survive a restart.
func New(cfg *config.AuthConfig, users UserProvisioner) *Identity {
	logger := logging.WithComponent("auth")

	key := []byte(cfg.SessionKey)
	if len(key) == 0 {
		logger.Warn("session_key not set; using a random key")
		key = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}

	return &Identity{store: store, jwtSecret: secret, users: users, logger: logger}
}

// Authenticate resolves the principal of the request, provisions its user row
// and stores the user in the gin context. Anonymous requests pass through.
func (i *Identity) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := i.sessionUsername(c.Request)
		if username == "" {
			username = i.tokenUsername(c.Request)
		}
		if username == "" {
			c.Next()
			return
		}

		user, err := i.users.Ensure(c.Request.Context(), username)
		if err != nil {
			_ = c.Error(fmt.Errorf("provision user %s: %w", username, err))
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func (i *Identity) sessionUsername(r *http.Request) string {
	sess, err := i.store.Get(r, SessionName)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			i.logger.Debug("Ignoring undecodable session cookie")
		}
		return ""
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return ""
	}
	username, _ := sess.Values[usernameKey].(string)
	return username
}

func (i *Identity) tokenUsername(r *http.Request) string {
	if i.jwtSecret == nil {
		return ""
	}

	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		i.logger.Debug("Rejected bearer token", zap.Error(err))
		return ""
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// Login marks the session as belonging to username.
func (i *Identity) Login(w http.ResponseWriter, r *http.Request, username string) error {
	sess, _ := i.store.Get(r, SessionName)
	sess.Values[isAuthKey] = true
	sess.Values[usernameKey] = username
	return sess.Save(r, w)
}

// Logout clears the session cookie.
func (i *Identity) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := i.store.Get(r, SessionName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// CurrentUser returns the authenticated user of the request, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// RequireLogin redirects anonymous requests to loginURL with the requested
// URI in the next parameter.
func RequireLogin(loginURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); ok {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, LoginRedirect(loginURL, c.Request.URL.RequestURI()))
		c.Abort()
	}
}

// LoginRedirect builds the login URL that returns to next after login.
func LoginRedirect(loginURL, next string) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + "next=" + url.QueryEscape(next)
}
