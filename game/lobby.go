package game

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"typerace/store"
)

type Lobby struct {
	store    store.Store
	texts    *TextPool
	notifier Notifier
	rng      Rand
	now      func() time.Time
}

func NewLobby(store store.Store, texts *TextPool, notifier Notifier) *Lobby {
	return &Lobby{
		store:    store,
		texts:    texts,
		notifier: notifier,
		rng:      globalRand{},
		now:      time.Now,
	}
}

func (l *Lobby) Tiers() []int {
	return l.texts.Tiers()
}

// CreateRoom opens a room in the lobby state with the caller as host.
func (l *Lobby) CreateRoom(ctx context.Context, sessionID, name string, tier int) (*CreateResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	text, err := l.texts.Pick(tier)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{}
	err = l.store.Atomic(ctx, func(tx store.Store) error {
		code, err := uniqueRoomCode(ctx, tx, l.rng)
		if err != nil {
			return err
		}

		now := l.now()
		roomID, err := tx.CreateRoom(ctx, &store.Room{
			Code:        code,
			Status:      StatusLobby,
			Tier:        tier,
			Text:        text,
			HostSession: sessionID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		playerID, err := tx.CreatePlayer(ctx, &store.Player{
			RoomID:    roomID,
			SessionID: sessionID,
			Name:      name,
			IsHost:    true,
			JoinedAt:  now,
		})
		if err != nil {
			return err
		}

		result.Code = code
		result.RoomID = roomID
		result.PlayerID = playerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("code", result.Code).Int64("room", result.RoomID).Int("duration", tier).Msg("room created")
	return result, nil
}

// JoinRoom adds the caller to the room with the given code. A session that
// already has a player in the room gets that player back.
func (l *Lobby) JoinRoom(ctx context.Context, code, sessionID, name string) (*JoinResult, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	result := &JoinResult{}
	created := false
	err = l.store.Atomic(ctx, func(tx store.Store) error {
		room, err := tx.GetRoomByCode(ctx, normalizeCode(code))
		if err != nil {
			return err
		}
		if room == nil {
			return ErrRoomNotFound
		}
		result.RoomID = room.ID

		existing, err := tx.GetPlayerBySession(ctx, room.ID, sessionID)
		if err != nil {
			return err
		}
		if existing != nil {
			result.PlayerID = existing.ID
			return nil
		}

		now := l.now()
		playerID, err := tx.CreatePlayer(ctx, &store.Player{
			RoomID:    room.ID,
			SessionID: sessionID,
			Name:      name,
			JoinedAt:  now,
		})
		if err != nil {
			return err
		}
		result.PlayerID = playerID
		created = true

		// Late joiners need a record for the race view to subscribe to.
		if room.Status == StatusInProgress {
			return seedProgress(ctx, tx, room.ID, playerID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		log.Info().Int64("room", result.RoomID).Int64("player", result.PlayerID).Msg("player joined")
		notify(l.notifier, result.RoomID)
	}
	return result, nil
}

// LeaveRoom removes the caller's player and progress. When the host leaves,
// the earliest remaining player becomes host.
func (l *Lobby) LeaveRoom(ctx context.Context, roomID int64, sessionID string) error {
	err := l.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		player, err := tx.GetPlayerBySession(ctx, roomID, sessionID)
		if err != nil {
			return err
		}
		if player == nil {
			return ErrPlayerNotFound
		}

		if err := tx.DeletePlayerProgress(ctx, roomID, player.ID); err != nil {
			return err
		}
		if err := tx.DeletePlayer(ctx, player.ID); err != nil {
			return err
		}

		if player.IsHost {
			remaining, err := tx.ListPlayers(ctx, roomID)
			if err != nil {
				return err
			}
			if len(remaining) > 0 {
				if err := tx.SetPlayerHost(ctx, remaining[0].ID, true); err != nil {
					return err
				}
				log.Info().Int64("room", roomID).Int64("player", remaining[0].ID).Msg("host handed over")
			}
		}

		_, err = finishIfAllDone(ctx, tx, room)
		return err
	})
	if err != nil {
		return err
	}

	notify(l.notifier, roomID)
	return nil
}

// GetRoom looks a room up by its share code. A miss is not an error.
func (l *Lobby) GetRoom(ctx context.Context, code string) (*store.Room, error) {
	return l.store.GetRoomByCode(ctx, normalizeCode(code))
}

func (l *Lobby) GetRoomByID(ctx context.Context, roomID int64) (*store.Room, error) {
	return loadRoom(ctx, l.store, roomID)
}

func (l *Lobby) ListPlayers(ctx context.Context, roomID int64) ([]*store.Player, error) {
	return l.store.ListPlayers(ctx, roomID)
}

// PlayerForSession returns the caller's player in the room, or nil.
func (l *Lobby) PlayerForSession(ctx context.Context, roomID int64, sessionID string) (*store.Player, error) {
	if sessionID == "" {
		return nil, nil
	}
	return l.store.GetPlayerBySession(ctx, roomID, sessionID)
}

// Snapshot reads the room with its players, progress and standings.
func (l *Lobby) Snapshot(ctx context.Context, roomID int64) (*Snapshot, error) {
	room, err := loadRoom(ctx, l.store, roomID)
	if err != nil {
		return nil, err
	}

	players, err := l.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	progress, err := l.store.ListProgress(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if players == nil {
		players = []*store.Player{}
	}
	if progress == nil {
		progress = []*store.Progress{}
	}

	total := len(Words(room.Text))
	return &Snapshot{
		Room:       room,
		Players:    players,
		Progress:   progress,
		Standings:  Rank(players, progress, total, room.StartTime),
		TotalWords: total,
		ServerTime: l.now(),
	}, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}
