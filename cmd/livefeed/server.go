package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The service sits behind the same origin as the API in deployment
		return true
	},
}

// Server handles WebSocket upgrades for the live prediction feed.
type Server struct {
	hub   *Hub
	redis *redis.Client
}

// NewServer creates a new Server instance
func NewServer(hub *Hub, redisClient *redis.Client) *Server {
	return &Server{
		hub:   hub,
		redis: redisClient,
	}
}

// HandleWebSocket authenticates the session and upgrades the connection.
// URL: /ws?token={session_token}
//
// Sessions are the same redis-backed tokens the API issues at login; the
// stored value is the user id.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	if token == "" {
		http.Error(w, "session token required", http.StatusUnauthorized)
		return
	}

	userID, err := s.redis.Get(r.Context(), "session:"+token).Result()
	if err != nil || userID == "" {
		http.Error(w, "session invalid or expired", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := NewClient(s.hub, conn, userID)
	s.hub.register <- client

	log.Printf("New WebSocket connection: user_id=%s, remote=%s", userID, r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

// HandleStats reports connection counts for operators
// GET /stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"connections": s.hub.ConnectionCount(),
		"users":       s.hub.UserCount(),
	})
}
