package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/handler"
	"github.com/rosegold-gallery/storefront/internal/middleware"
)

// NewRouter assembles the HTTP surface. Identity-sensitive routes sit
// behind Authenticate; admin routes additionally behind RequireRole, in
// that order, so a 403 is only reachable once 401 is ruled out.
func NewRouter(tokens *auth.TokenService, authHandler *handler.AuthHandler, orderHandler *handler.OrderHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Prometheus)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(auth.Authenticate(tokens))
			orderHandler.RegisterRoutes(authed)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.Authenticate(tokens))
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			orderHandler.RegisterAdminRoutes(admin)
		})
	})

	return r
}
