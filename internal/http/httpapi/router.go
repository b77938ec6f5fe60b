package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"contentfactory/internal/http/handlers"
	"contentfactory/internal/middleware"
	"contentfactory/internal/realtime"
)

// Config carries the settings the router needs beyond the App.
type Config struct {
	JWTSecret            string
	CORSAllowedOrigins   []string
	InternalAllowedCIDRs []string
	DefaultLocale        string
	RateLimitPerMin      int
	WSSendBuffer         int
	CountryLookup        middleware.CountryLookup
}

func NewRouter(app *handlers.App, hub *realtime.Hub, cfg Config, log zerolog.Logger) (http.Handler, error) {
	internalOnly, err := middleware.InternalOnly(cfg.InternalAllowedCIDRs)
	if err != nil {
		return nil, fmt.Errorf("internal allowlist: %w", err)
	}

	// RealIP is left out: the internal allowlist must see the socket peer.
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, cfg.CountryLookup),
	)

	// Health
	r.Get("/api/health", app.Health)
	r.Get("/api/openapi.json", app.OpenAPIJSON)
	r.Get("/api/docs", app.OpenAPIDocs)

	r.Method(http.MethodGet, "/ws", hub.Handler(realtime.HandlerConfig{
		Authenticate:   middleware.TokenAuthenticator(cfg.JWTSecret),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SendBuffer:     cfg.WSSendBuffer,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", app.SessionsList)
			r.Post("/", app.SessionsCreate)
			r.Get("/{id}", app.SessionsGet)
			r.Delete("/{id}", app.SessionsCancel)
			r.Post("/{id}/resume", app.SessionsResume)
			r.Put("/{id}/approve", app.SessionsApprove)
			r.Put("/{id}/reject", app.SessionsReject)
			r.Post("/{id}/publish", app.SessionsPublish)
		})
		r.Get("/api/errors", app.ErrorsList)
	})

	r.Route("/api/internal", func(r chi.Router) {
		r.Use(internalOnly)
		r.Post("/step-update", app.CallbackStepUpdate)
		r.Post("/session-update", app.CallbackSessionUpdate)
		r.Post("/error", app.CallbackError)
		r.Post("/log-error", app.CallbackLogError)
		r.Post("/cost", app.CallbackCost)
		r.Post("/media", app.CallbackMedia)
		r.Post("/content-ready", app.CallbackContentReady)
		r.Post("/video-ready", app.CallbackVideoReady)
		r.Post("/card-ready", app.CallbackCardReady)
	})

	return r, nil
}
