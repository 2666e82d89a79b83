package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"typerace/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	opTimeout      = 5 * time.Second
)

var errNotRacing = errors.New("join the room to race")

// Manager keeps one subscription room per race and pushes a fresh snapshot
// to it whenever the game reports a change.
type Manager struct {
	rooms   map[int64]*Room
	lobby   *game.Lobby
	engine  *game.Engine
	tracker *game.Tracker
	mu      sync.RWMutex
}

func NewManager(lobby *game.Lobby, engine *game.Engine, tracker *game.Tracker) *Manager {
	return &Manager{
		rooms:   make(map[int64]*Room),
		lobby:   lobby,
		engine:  engine,
		tracker: tracker,
	}
}

func (m *Manager) GetRoom(roomID int64) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// RoomChanged implements game.Notifier.
func (m *Manager) RoomChanged(roomID int64) {
	room := m.GetRoom(roomID)
	if room == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	snapshot, err := m.lobby.Snapshot(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Int64("room", roomID).Msg("failed to build snapshot")
		return
	}
	room.Broadcast(OutgoingMessage{Type: TypeSnapshot, Payload: snapshot})
}

func (m *Manager) HandleConnection(conn *websocket.Conn, roomID int64, sessionID string) {
	client := &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}

	room := m.subscribe(roomID, client)
	log.Debug().Int64("room", roomID).Str("session", sessionID).Msg("subscriber connected")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	snapshot, err := m.lobby.Snapshot(ctx, roomID)
	cancel()
	if err != nil {
		client.Send(errorMessage(err.Error()))
	} else {
		client.Send(OutgoingMessage{Type: TypeSnapshot, Payload: snapshot})
	}

	go m.writePump(client)
	go m.readPump(client, room)
}

func (m *Manager) subscribe(roomID int64, client *Client) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		room = NewRoom(roomID)
		m.rooms[roomID] = room
	}
	room.AddClient(client)
	return room
}

func (m *Manager) unsubscribe(room *Room, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room.RemoveClient(client) == 0 && m.rooms[room.roomID] == room {
		delete(m.rooms, room.roomID)
	}
}

func (m *Manager) readPump(client *Client, room *Room) {
	defer func() {
		m.unsubscribe(room, client)
		client.conn.Close()
		log.Debug().Int64("room", room.roomID).Str("session", client.sessionID).Msg("subscriber disconnected")
	}()

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Int64("room", room.roomID).Msg("websocket error")
			}
			break
		}

		var inMsg IncomingMessage
		if err := json.Unmarshal(message, &inMsg); err != nil {
			client.Send(errorMessage("malformed message"))
			continue
		}

		m.handleMessage(client, room, &inMsg)
	}
}

func (m *Manager) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) handleMessage(client *Client, room *Room, msg *IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case TypeInput:
		var payload inputPayload
		if err = decodePayload(msg.Payload, &payload); err != nil {
			break
		}
		var playerID int64
		if playerID, err = m.playerID(ctx, room.roomID, client.sessionID); err != nil {
			break
		}
		var result *game.SubmitResult
		result, err = m.tracker.SubmitInput(ctx, room.roomID, playerID, payload.Input)
		if err == nil {
			client.Send(OutgoingMessage{Type: TypeTyped, Payload: result})
		}

	case TypeProgress:
		var payload progressPayload
		if err = decodePayload(msg.Payload, &payload); err != nil {
			break
		}
		var playerID int64
		if playerID, err = m.playerID(ctx, room.roomID, client.sessionID); err != nil {
			break
		}
		err = m.tracker.UpdateProgress(ctx, room.roomID, playerID, payload.CurrentWord, payload.Input)

	case TypeStart:
		err = m.engine.StartGame(ctx, room.roomID, client.sessionID)

	case TypeAdvance:
		err = m.engine.AdvanceToInProgress(ctx, room.roomID)

	case TypeFinish:
		err = m.engine.FinishGame(ctx, room.roomID)

	case TypeRestart:
		err = m.engine.RestartGame(ctx, room.roomID, client.sessionID)

	default:
		log.Debug().Str("type", msg.Type).Msg("unknown message type")
		client.Send(errorMessage("unknown message type: " + msg.Type))
		return
	}

	if err != nil {
		log.Debug().Err(err).Int64("room", room.roomID).Str("type", msg.Type).Msg("message rejected")
		client.Send(errorMessage(clientError(err)))
	}
}

func (m *Manager) playerID(ctx context.Context, roomID int64, sessionID string) (int64, error) {
	player, err := m.lobby.PlayerForSession(ctx, roomID, sessionID)
	if err != nil {
		return 0, err
	}
	if player == nil {
		return 0, errNotRacing
	}
	return player.ID, nil
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return game.ErrInvalidArgument
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return game.ErrInvalidArgument
	}
	return nil
}

// clientError hides internal failures behind a generic message.
func clientError(err error) string {
	switch {
	case errors.Is(err, errNotRacing),
		errors.Is(err, game.ErrNotFound),
		errors.Is(err, game.ErrPermissionDenied),
		errors.Is(err, game.ErrInvalidState),
		errors.Is(err, game.ErrInvalidArgument):
		return err.Error()
	default:
		log.Error().Err(err).Msg("failed to handle message")
		return "internal error"
	}
}
