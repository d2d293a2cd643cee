// Package session implements cookie sessions on top of signed JWTs.
// A session cookie carries the user ID; the resolver middleware turns it
// back into a user by consulting the user directory. An absent, expired,
// or stale cookie resolves to an anonymous request, never to an error.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/tinyapp/internal/logger"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

type userFinder interface {
	FindUserByID(ctx context.Context, userID string) (*user.User, bool, error)
}

// Claims represents the JWT claims carried by the session cookie.
// It embeds standard JWT claims and adds the user identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// CurrentUserKey is the context key under which the resolver middleware
// stores the authenticated *user.User.
const CurrentUserKey ContextKey = "currentUser"

// Manager issues, clears, and resolves session cookies.
type Manager struct {
	// db is the interface to the user data storage.
	db userFinder

	// cookieName is the name of the session cookie.
	cookieName string

	// signingSecretKey is the key used to sign session JWTs.
	signingSecretKey []byte

	// ttl is the lifetime of an issued session.
	ttl time.Duration
}

// New creates a session Manager with the given user data access layer,
// cookie name, JWT signing secret, and session lifetime.
func New(
	db userFinder,
	cookieName string,
	signingSecretKey []byte,
	ttl time.Duration,
) *Manager {
	return &Manager{
		db:               db,
		cookieName:       cookieName,
		signingSecretKey: signingSecretKey,
		ttl:              ttl,
	}
}

// Establish signs a new session JWT for the given user ID and sets it
// as the session cookie.
func (m *Manager) Establish(response http.ResponseWriter, userID string) error {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(m.signingSecretKey)
	if err != nil {
		return fmt.Errorf(
			"in internal/session/session.go/Establish(): error while `token.SignedString()` calling: %w",
			err,
		)
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     m.cookieName,
			Value:    tokenString,
			Path:     "/",
			HttpOnly: true,
		},
	)

	return nil
}

// Clear drops the session cookie unconditionally.
func (m *Manager) Clear(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		},
	)
}

// ResolveUser is an HTTP middleware that resolves the session cookie into
// a user and stores it in the request context. Requests without a usable
// session pass through as anonymous.
func (m *Manager) ResolveUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID := m.getUserIDFromCookie(request)
		if userID == "" {
			h.ServeHTTP(response, request)

			return
		}

		usr, found, err := m.db.FindUserByID(request.Context(), userID)
		if err != nil {
			logger.Log.Debugln("Error calling the `m.db.FindUserByID()`: ", zap.Error(err))
			response.WriteHeader(http.StatusInternalServerError)

			return
		}
		if !found {
			// Stale session: the cookie points at a user that no longer exists.
			h.ServeHTTP(response, request)

			return
		}

		ctx := context.WithValue(request.Context(), CurrentUserKey, usr)
		requestWithCtx := request.WithContext(ctx)
		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

// UserFromContext returns the authenticated user stored by ResolveUser,
// or (nil, false) for an anonymous request.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	usr, ok := ctx.Value(CurrentUserKey).(*user.User)
	if !ok || usr == nil {
		return nil, false
	}

	return usr, true
}

func (m *Manager) getUserIDFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(m.cookieName)
	if err != nil {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.UserID
}
