package api

import (
	"log"
	"net/http"

	"github.com/ewbrowntech/atto-host/internal/auth"
	"github.com/ewbrowntech/atto-host/internal/websocket"
)

// ServeWsHandler upgrades an administrator connection to a websocket fed by
// the event journal. Browsers cannot set an Authorization header on a
// websocket handshake, so the token rides in a query parameter.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		log.Println("WS connection attempt without token")
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		log.Printf("WS connection attempt with invalid token: %v", err)
		http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil || user == nil || !user.Admin {
		http.Error(w, "You are not authorized to perform this operation!", http.StatusForbidden)
		return
	}

	conn, err := websocket.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("WebSocket upgrade error:", err)
		return
	}

	client := websocket.NewClient(s.wsHub, conn, user.ID)
	s.wsHub.Register <- client

	go client.ReadPump()
	go client.WritePump()
}
