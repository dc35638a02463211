// Package httpapi собирает HTTP-поверхность: chi-роутер, конверт ответа,
// авторизацию и лимиты. Все бизнес-исходы уходят с HTTP 200.
package httpapi

import (
	"fmt"
	"net/http"
	"os"

	"github.com/BearBump/SendBox/internal/services/drivers"
	"github.com/BearBump/SendBox/internal/services/routes"
	"github.com/BearBump/SendBox/internal/services/sends"
	"github.com/BearBump/SendBox/internal/services/users"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Notifier — админская поверхность рассылок поверх диспетчера.
type Notifier interface {
	ToAll(event string, payload any)
	ToUser(email, event string, payload any) bool
	ConnectedUsers() []string
	IsUserConnected(email string) bool
}

type RateLimits struct {
	GeneralPer15Min int64
	AuthPer15Min    int64
	ModifyPerMinute int64
}

type Deps struct {
	Sends    *sends.Service
	Users    *users.Service
	Drivers  *drivers.Service
	Routes   *routes.Service
	Notifier Notifier
	Tokens   TokenDecoder
	Limiter  Limiter
	Limits   RateLimits

	// WSHandler обслуживает GET /ws; nil отключает realtime-канал.
	WSHandler http.Handler

	SwaggerPath string
}

type api struct {
	sends    *sends.Service
	users    *users.Service
	drivers  *drivers.Service
	routes   *routes.Service
	notifier Notifier
	tokens   TokenDecoder
	limiter  Limiter
	limits   RateLimits
}

func NewRouter(d Deps) http.Handler {
	a := &api{
		sends:    d.Sends,
		users:    d.Users,
		drivers:  d.Drivers,
		routes:   d.Routes,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		limiter:  d.Limiter,
		limits:   d.Limits,
	}

	r := chi.NewRouter()
	r.Use(a.recoverMiddleware)
	r.Use(a.generalRateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/login", func(r chi.Router) {
			r.Get("/", ready("Login"))
			r.With(a.authRateLimit).Post("/login", a.handleLogin)
			r.With(a.authRateLimit).Post("/register", a.handleRegister)
		})

		r.Route("/sends", func(r chi.Router) {
			r.Get("/", ready("Sends"))
			r.Group(func(r chi.Router) {
				r.Use(a.authMiddleware, a.modifyRateLimit)
				r.Post("/create", a.handleCreateSend)
				r.Put("/update/{id}", a.handleUpdateSend)
				r.Post("/getSendsFiltered", a.handleGetSendsFiltered)
			})
		})

		r.Route("/home", func(r chi.Router) {
			r.Get("/", ready("Home"))
			r.Get("/tracking", a.handleTrackingList)
			r.Get("/tracking/{unique_id}", a.handleTracking)
			r.With(a.authMiddleware, a.modifyRateLimit).
				Get("/tracking-auth/{unique_id}", a.handleTrackingAuth)
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Get("/", ready("Drivers"))
			r.Group(func(r chi.Router) {
				r.Use(a.authMiddleware, a.modifyRateLimit)
				r.Get("/drivers", a.handleListDrivers)
				r.Post("/create", a.handleCreateDriver)
			})
		})

		r.Route("/general", func(r chi.Router) {
			r.Get("/", ready("General"))
			r.With(a.authMiddleware, a.modifyRateLimit).Get("/routes", a.handleListRoutes)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", ready("Users"))
			r.With(a.authMiddleware, a.modifyRateLimit).Get("/getAllUsers", a.handleListUsers)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/broadcast", a.handleBroadcast)
			r.Post("/private", a.handlePrivate)
			r.Post("/system-status", a.handleSystemStatus)
			r.Get("/connected-users", a.handleConnectedUsers)
			r.Get("/user-status/{email}", a.handleUserStatus)
		})
	})

	if d.WSHandler != nil {
		r.Handle("/ws", d.WSHandler)
	}

	if d.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, d.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(d.SwaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return r
}

func ready(controller string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respond(w, envelope{Code: 200, Message: controller + " controller Ready!"})
	}
}
