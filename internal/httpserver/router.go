package httpserver

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"authgate/internal/apperr"
	"authgate/internal/audit"
	"authgate/internal/auth"
	"authgate/internal/httpserver/handlers"
	"authgate/internal/models"
	"authgate/internal/ratelimit"
	"authgate/internal/store"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Stores          *store.Stores
	Auth            *auth.Service
	MW              *auth.Middleware
	Audit           *audit.Recorder
	LoginLimiter    ratelimit.Limiter
	Cookies         handlers.CookieConfig
	SettingDefaults models.Setting
	Log             *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Route("/auth", func(ar chi.Router) {
		ar.With(rateLimited(d.LoginLimiter)).Post("/register", handlers.Register(d.Auth, d.Log))
		ar.With(rateLimited(d.LoginLimiter)).Post("/login", handlers.Login(d.Auth, d.Cookies, d.Log))
		ar.Post("/refresh", handlers.Refresh(d.Auth, d.Cookies, d.Log))
		ar.Post("/logout", handlers.Logout(d.Auth, d.Cookies))
		ar.Group(func(pr chi.Router) {
			pr.Use(d.MW.Authenticate)
			pr.Get("/me", handlers.Me(d.Stores.Users, d.Stores.Permissions, d.Log))
			pr.Post("/logout-all", handlers.LogoutAll(d.Auth, d.Cookies))
			pr.Post("/password", handlers.ChangePassword(d.Auth, d.Cookies))
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(d.MW.Authenticate)

		pr.Route("/users", func(ur chi.Router) {
			ur.With(d.MW.RequirePermission("users.read")).Get("/", handlers.ListUsers(d.Stores.Users, d.Log))
			ur.With(d.MW.RequirePermission("users.create")).Post("/", handlers.CreateUser(d.Stores.Users, d.Stores.Roles, d.Audit, d.Log))
			ur.With(d.MW.RequireSelfOrPermission("id", "users.read")).Get("/{id}", handlers.GetUser(d.Stores.Users))
			ur.With(d.MW.RequireSelfOrPermission("id", "users.update")).Patch("/{id}", handlers.UpdateUser(d.Stores.Users, d.Stores.Roles, d.Stores.Permissions, d.Audit, d.Log))
			ur.With(d.MW.RequirePermission("users.delete")).Delete("/{id}", handlers.DeleteUser(d.Stores.Users, d.Audit, d.Log))
		})

		pr.Route("/roles", func(rr chi.Router) {
			rr.With(d.MW.RequirePermission("roles.read")).Get("/", handlers.ListRoles(d.Stores.Roles, d.Log))
			rr.With(d.MW.RequirePermission("roles.create")).Post("/", handlers.CreateRole(d.Stores.Roles, d.Stores.Permissions, d.Audit, d.Log))
			rr.With(d.MW.RequirePermission("roles.read")).Get("/{id}", handlers.GetRole(d.Stores.Roles))
			rr.With(d.MW.RequirePermission("roles.update")).Patch("/{id}", handlers.UpdateRole(d.Stores.Roles, d.Stores.Permissions, d.Audit, d.Log))
			rr.With(d.MW.RequirePermission("roles.delete")).Delete("/{id}", handlers.DeleteRole(d.Stores.Roles, d.Audit, d.Log))
		})

		pr.Route("/permissions", func(pmr chi.Router) {
			pmr.With(d.MW.RequirePermission("permissions.read")).Get("/", handlers.ListPermissions(d.Stores.Permissions, d.Log))
			pmr.With(d.MW.RequirePermission("permissions.create")).Post("/", handlers.CreatePermission(d.Stores.Permissions, d.Audit, d.Log))
			pmr.With(d.MW.RequirePermission("permissions.read")).Get("/{id}", handlers.GetPermission(d.Stores.Permissions))
			pmr.With(d.MW.RequirePermission("permissions.update")).Patch("/{id}", handlers.UpdatePermission(d.Stores.Permissions, d.Audit, d.Log))
			pmr.With(d.MW.RequirePermission("permissions.delete")).Delete("/{id}", handlers.DeletePermission(d.Stores.Permissions, d.Audit, d.Log))
		})

		pr.Route("/settings", func(sr chi.Router) {
			sr.With(d.MW.RequirePermission("settings.read")).Get("/", handlers.GetSettings(d.Stores.Settings, d.SettingDefaults, d.Log))
			sr.With(d.MW.RequirePermission("settings.update")).Patch("/", handlers.UpdateSettings(d.Stores.Settings, d.SettingDefaults, d.Audit, d.Log))
		})

		pr.Route("/audit-logs", func(alr chi.Router) {
			alr.Use(d.MW.RequirePermission("audit-logs.read"))
			alr.Get("/", handlers.ListAuditLogs(d.Audit, d.Log))
			alr.Get("/statistics", handlers.AuditStatistics(d.Audit, d.Log))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

// rateLimited keys on the client IP and answers 429 with retry-after seconds.
func rateLimited(lim ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := lim.Allow(auth.ClientIP(r))
			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				apperr.WriteError(w, apperr.RateLimited(secs))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
