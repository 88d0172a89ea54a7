package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/transport/http/handler"
	appmiddleware "github.com/campusswap/api/internal/transport/http/middleware"
)

// siteCaps names the capabilities one hosted frontend gets. The table is
// fixed at construction: a site without a capability simply has no route for
// it, so nothing can reach an unwired handler at runtime.
type siteCaps struct {
	site     domain.Site
	auth     bool
	listings bool
	reviews  bool
}

var sites = []siteCaps{
	{site: domain.SiteSwap, auth: true, listings: true},
	{site: domain.SiteHousing, auth: true, reviews: true},
	{site: domain.SiteHome},
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — applied to the endpoints that send
	// mail or touch lockout counters.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	siteLabels := make([]domain.Site, len(sites))
	for i, s := range sites {
		siteLabels[i] = s.site
	}
	metricsH := handler.NewMetricsHandler(deps.Metrics, siteLabels)

	r.Get("/health", healthH.Ping)
	r.Get("/metrics", metricsH.Dump)

	for _, sc := range sites {
		sc := sc
		r.Route("/"+string(sc.site), func(r chi.Router) {
			r.Use(appmiddleware.APIToken(deps.Tokens, sc.site))

			r.Get("/visitors", metricsH.Visitors(sc.site))

			if sc.auth {
				authH := handler.NewAuthHandler(deps.Sessions, sc.site)
				r.With(sensitiveRL.Limit).Post("/authenticate", authH.Authenticate)
				r.With(sensitiveRL.Limit).Post("/verify", authH.Verify)
				r.With(sensitiveRL.Limit).Post("/resend", authH.Resend)
				r.With(sensitiveRL.Limit).Post("/forgot", authH.Forgot)
				r.Post("/logout", authH.Logout)
			}
			if sc.listings {
				listingH := handler.NewListingHandler(deps.Listings, deps.Sessions, sc.site)
				r.Post("/items", listingH.Create)
				r.Delete("/items/{id}", listingH.Delete)
			}
			if sc.reviews {
				reviewH := handler.NewReviewHandler(deps.Reviews, deps.Sessions, sc.site)
				r.Post("/reviews", reviewH.Create)
				r.Post("/thumbs", reviewH.Thumbs)
			}
		})
	}

	return r
}
