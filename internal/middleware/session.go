package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/infra/geoip"
)

type sessionKey string

const (
	sessionIDKey sessionKey = "session_id"

	// SessionCookieName identifies the browser session that owns jobs.
	SessionCookieName = "session_id"

	sessionTokenBytes = 32
)

// Session attaches an opaque owner token to every request. A returning
// browser presents it via an HTTP-only cookie; a first-time visitor gets a
// fresh token minted and set on the response. The token is the sole proof
// of job ownership, so it never appears in URLs or response bodies.
//
// When a country resolver is provided, first contacts are logged with the
// caller's ISO country code for traffic insight. Lookup failures are
// ignored; geo data is best effort.
func Session(logger zerolog.Logger, resolver geoip.CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionTokenFromCookie(r)
			if token == "" {
				minted, err := mintSessionToken()
				if err != nil {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				token = minted
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
					SameSite: http.SameSiteLaxMode,
				})
				logFirstContact(logger, resolver, r)
			}
			ctx := context.WithValue(r.Context(), sessionIDKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func mintSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func logFirstContact(logger zerolog.Logger, resolver geoip.CountryResolver, r *http.Request) {
	event := logger.Info().Str("remote_addr", r.RemoteAddr)
	if resolver != nil {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if country, err := resolver.CountryCode(host); err == nil && country != "" {
			event = event.Str("country", country)
		}
	}
	event.Msg("new session")
}

// SessionIDFromContext returns the owner token for the request, or an empty
// string when the middleware did not run.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithSessionID is a test helper for handlers that read the token.
func ContextWithSessionID(ctx context.Context, token string) context.Context {
	if strings.TrimSpace(token) == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, token)
}
