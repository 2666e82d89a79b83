package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is one subscriber. Spectators and racers look the same here; the
// player behind a session is resolved per message.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// Send queues a message for this client only, dropping it if the buffer is full.
func (c *Client) Send(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	select {
	case c.send <- data:
	default:
		log.Warn().Str("session", c.sessionID).Msg("client send buffer full")
	}
}

type Room struct {
	roomID  int64
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewRoom(roomID int64) *Room {
	return &Room{
		roomID:  roomID,
		clients: make(map[*Client]bool),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mu.Lock()
	r.clients[client] = true
	r.mu.Unlock()
}

// RemoveClient drops the client and reports how many remain.
func (r *Room) RemoveClient(client *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[client]; ok {
		delete(r.clients, client)
		close(client.send)
	}
	return len(r.clients)
}

func (r *Room) Broadcast(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.clients {
		select {
		case client.send <- data:
		default:
			log.Warn().Int64("room", r.roomID).Str("session", client.sessionID).Msg("client send buffer full")
		}
	}
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
