package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie shared by the HTTP API and the websocket
// handshake.
const CookieName = "consultlink_sid"

var ErrNoCookie = errors.New("no session cookie")

// Resolver bridges a raw request to a session. The cookie value is a signed
// HS256 token whose subject is the session ID, so a tampered cookie fails
// before we ever touch the store. Both transports authenticate through the
// same Resolve call.
type Resolver struct {
	store  Store
	secret []byte
}

func NewResolver(store Store, secret []byte) *Resolver {
	return &Resolver{store: store, secret: secret}
}

// Issue creates a session for the user and returns the cookie carrying it.
func (r *Resolver) Issue(ctx context.Context, userID int64, userRole string) (*Session, *http.Cookie, error) {
	sess, err := r.store.Create(ctx, userID, userRole)
	if err != nil {
		return nil, nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  sess.ID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return nil, nil, fmt.Errorf("sign session cookie: %w", err)
	}

	return sess, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Resolve authenticates a request from its session cookie. Expiry of the
// record itself is owned by the store's TTL, not the cookie.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Session, error) {
	cookie, err := req.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoCookie
	}

	id, err := r.parseSessionID(cookie.Value)
	if err != nil {
		return nil, err
	}
	return r.store.Get(ctx, id)
}

// Clear destroys the session behind the request, if any, and returns an
// expired cookie for the response.
func (r *Resolver) Clear(ctx context.Context, req *http.Request) (*http.Cookie, error) {
	expired := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	}

	cookie, err := req.Cookie(CookieName)
	if err != nil {
		return expired, nil
	}
	id, err := r.parseSessionID(cookie.Value)
	if err != nil {
		return expired, nil
	}
	return expired, r.store.Destroy(ctx, id)
}

func (r *Resolver) parseSessionID(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid session cookie")
	}
	return claims.Subject, nil
}
