package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"typerace/auth"
	"typerace/game"
	"typerace/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

type Handlers struct {
	lobby     *game.Lobby
	engine    *game.Engine
	tracker   *game.Tracker
	wsManager *ws.Manager
}

func NewHandlers(lobby *game.Lobby, engine *game.Engine, tracker *game.Tracker, wsManager *ws.Manager) *Handlers {
	return &Handlers{
		lobby:     lobby,
		engine:    engine,
		tracker:   tracker,
		wsManager: wsManager,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeGameError maps game error kinds onto status codes. Unexpected errors
// are logged and reported without detail.
func writeGameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Room handlers
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Duration int    `json:"duration"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID := GetSessionIDFromContext(r.Context())
	result, err := h.lobby.CreateRoom(r.Context(), sessionID, auth.SanitizeName(req.Name), req.Duration)
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.lobby.GetRoom(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sessionID := GetSessionIDFromContext(r.Context())
	result, err := h.lobby.JoinRoom(r.Context(), mux.Vars(r)["code"], sessionID, auth.SanitizeName(req.Name))
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Race views
func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	h.writeSnapshot(w, r, roomID)
}

func (h *Handlers) writeSnapshot(w http.ResponseWriter, r *http.Request, roomID int64) {
	snapshot, err := h.lobby.Snapshot(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handlers) ListPlayers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	if _, err := h.lobby.GetRoomByID(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}

	players, err := h.lobby.ListPlayers(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(players))
}

func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	if _, err := h.lobby.GetRoomByID(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}

	progress, err := h.tracker.GetProgress(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(progress))
}

func (h *Handlers) Standings(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}

	standings, err := h.tracker.Standings(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(standings))
}

// Lifecycle handlers answer with the room snapshot after the change.
func (h *Handlers) StartGame(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.engine.StartGame)
}

func (h *Handlers) RestartGame(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.engine.RestartGame)
}

func (h *Handlers) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.lobby.LeaveRoom)
}

func (h *Handlers) AdvanceGame(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.engine.AdvanceToInProgress)
}

func (h *Handlers) FinishGame(w http.ResponseWriter, r *http.Request) {
	h.roomAction(w, r, h.engine.FinishGame)
}

func (h *Handlers) sessionAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, roomID int64, sessionID string) error) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}

	if err := action(r.Context(), roomID, GetSessionIDFromContext(r.Context())); err != nil {
		writeGameError(w, r, err)
		return
	}
	h.writeSnapshot(w, r, roomID)
}

func (h *Handlers) roomAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, roomID int64) error) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}

	if err := action(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}
	h.writeSnapshot(w, r, roomID)
}

// Progress handlers
func (h *Handlers) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}

	var req struct {
		PlayerID    int64  `json:"playerId"`
		CurrentWord int    `json:"currentWord"`
		Input       string `json:"input"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.tracker.UpdateProgress(r.Context(), roomID, req.PlayerID, req.CurrentWord, req.Input); err != nil {
		writeGameError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SubmitInput(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}

	var req struct {
		PlayerID int64  `json:"playerId"`
		Input    string `json:"input"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.tracker.SubmitInput(r.Context(), roomID, req.PlayerID, req.Input)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) MarkPlayerFinished(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerId")
	if !ok {
		return
	}

	if err := h.tracker.MarkPlayerFinished(r.Context(), playerID); err != nil {
		writeGameError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]int{"durations": orEmpty(h.lobby.Tiers())})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WebSocket handler
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	if _, err := h.lobby.GetRoomByID(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.wsManager.HandleConnection(conn, roomID, GetSessionIDFromContext(r.Context()))
}
