package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Authenticator validates a bearer token and returns the subscriber login.
type Authenticator func(token string) (string, error)

// HandlerConfig configures the websocket endpoint.
type HandlerConfig struct {
	Authenticate   Authenticator
	AllowedOrigins []string
	SendBuffer     int
}

// Handler upgrades authenticated requests and attaches them to the hub.
// The token comes from the token query parameter or a bearer header;
// requests without a valid token are refused before the upgrade.
func (h *Hub) Handler(cfg HandlerConfig) http.Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.AllowedOrigins)
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" || cfg.Authenticate == nil {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		login, err := cfg.Authenticate(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		id := uuid.NewString()
		c := &Client{
			id:    id,
			login: login,
			hub:   h,
			conn:  conn,
			send:  make(chan []byte, cfg.SendBuffer),
			log:   h.log.With().Str("client", id).Str("login", login).Logger(),
		}
		h.register(c)
		c.log.Info().Msg("websocket connected")
		go c.writePump()
		go func() {
			c.readPump()
			c.log.Info().Msg("websocket disconnected")
		}()
	})
}

func requestToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
			return true
		}
	}
	parsed, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}
