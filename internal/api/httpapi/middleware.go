package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/BearBump/SendBox/internal/cache/rediscache"
	"github.com/BearBump/SendBox/internal/models"
)

// TokenDecoder проверяет токен, выпущенный для origin (ip клиента).
type TokenDecoder interface {
	Decode(token, origin string) (*models.AuthUser, error)
}

// Limiter — счётчик с фиксированным окном; реализация живёт в redis.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type ctxKey int

const authUserKey ctxKey = 0

func authUserFrom(ctx context.Context) *models.AuthUser {
	u, _ := ctx.Value(authUserKey).(*models.AuthUser)
	return u
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *api) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respond(w, envelope{Code: 401, Text: "Unauthorized"})
			return
		}
		user, err := a.tokens.Decode(parts[1], clientIP(r))
		if err != nil || user == nil {
			respond(w, envelope{Code: 401, Text: "Unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), authUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *api) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler",
					"method", r.Method,
					"url", r.URL.String(),
					"remote", r.RemoteAddr,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				respond(w, envelope{Code: 500, Text: "server-error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// limit применяет лимит и пропускает запрос дальше при отказе redis —
// недоступный лимитер не должен ронять трафик.
func (a *api) limit(next http.Handler, key func(*http.Request) string, max int64, window time.Duration, refusalText string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil || max <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ok, _, err := a.limiter.Allow(r.Context(), key(r), max, window)
		if err != nil {
			slog.Warn("rate limiter unavailable", "err", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			respond(w, envelope{Code: 429, Text: refusalText})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *api) generalRateLimit(next http.Handler) http.Handler {
	return a.limit(next, func(r *http.Request) string {
		return rediscache.GeneralKey(clientIP(r))
	}, a.limits.GeneralPer15Min, 15*time.Minute,
		"Demasiadas solicitudes. Intenta de nuevo en 15 minutos.")
}

func (a *api) authRateLimit(next http.Handler) http.Handler {
	return a.limit(next, func(r *http.Request) string {
		return rediscache.AuthKey(clientIP(r))
	}, a.limits.AuthPer15Min, 15*time.Minute,
		"Demasiados intentos de login. Intenta de nuevo en 15 minutos.")
}

// modifyRateLimit считает по пользователю, поэтому стоит после authMiddleware.
func (a *api) modifyRateLimit(next http.Handler) http.Handler {
	return a.limit(next, func(r *http.Request) string {
		if u := authUserFrom(r.Context()); u != nil {
			return rediscache.ModifyKey(u.ID)
		}
		return rediscache.GeneralKey(clientIP(r))
	}, a.limits.ModifyPerMinute, time.Minute,
		"Demasiadas operaciones. Intenta de nuevo en 1 minuto.")
}
