package main

import (
	"log"
	"sync"
)

// Hub maintains active WebSocket connections grouped by user id and pushes
// prediction events to every connection the user has open.
type Hub struct {
	// Map: userID → []*Client
	connections map[string][]*Client
	mutex       sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

// Message is a prediction event addressed to one user.
type Message struct {
	UserID string
	Data   []byte
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	log.Println("Hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.pushToUser(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.connections[client.userID] = append(h.connections[client.userID], client)
	log.Printf("Client registered: user_id=%s, total_for_user=%d",
		client.userID, len(h.connections[client.userID]))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients := h.connections[client.userID]
	for i, c := range clients {
		if c == client {
			h.connections[client.userID] = append(clients[:i], clients[i+1:]...)
			close(client.send)

			if len(h.connections[client.userID]) == 0 {
				delete(h.connections, client.userID)
			}

			log.Printf("Client unregistered: user_id=%s, remaining_for_user=%d",
				client.userID, len(h.connections[client.userID]))
			break
		}
	}
}

// pushToUser sends a message to every open connection for one user.
func (h *Hub) pushToUser(message *Message) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := h.connections[message.UserID]
	if len(clients) == 0 {
		return
	}

	for _, client := range clients {
		select {
		case client.send <- message.Data:
		default:
			// Send buffer full; the client is too slow, drop it
			log.Printf("Client send buffer full, closing connection: user_id=%s", client.userID)
			close(client.send)
		}
	}
}

// ConnectionCount returns the total number of active connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.connections {
		count += len(clients)
	}
	return count
}

// UserCount returns the number of unique users connected
func (h *Hub) UserCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.connections)
}
