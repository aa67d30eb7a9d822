package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vedran77/partsmarket/internal/service"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, jwtSecret string, authz Authorizer, allowedOrigins []string) http.HandlerFunc {
	secret := []byte(jwtSecret)
	opts := acceptOptions(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := service.ParseToken(secret, tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn().Err(err).Msg("ws: accept error")
			return
		}

		client := NewClient(hub, conn, userID, authz)
		if !hub.Register(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		// The request context is cancelled once the handler returns.
		ctx := context.WithoutCancel(r.Context())
		go client.WritePump(ctx)
		go client.ReadPump(ctx)
	}
}

// acceptOptions turns CORS origins into nhooyr host patterns. A "*" entry
// disables the origin check.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		host := o
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			host = u.Host
		}
		opts.OriginPatterns = append(opts.OriginPatterns, strings.TrimSuffix(host, "/"))
	}
	return opts
}
