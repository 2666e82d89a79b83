package game

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"typerace/store"
)

// Engine drives a room through lobby -> countdown -> in_progress -> finished
// and back to lobby on restart.
//
// Every transition re-reads the room inside one store.Atomic unit and checks
// its precondition before writing, so clients racing to fire the same
// transition are safe: the first one wins and the rest see ErrInvalidState
// (or a no-op for FinishGame).
type Engine struct {
	store     store.Store
	notifier  Notifier
	countdown time.Duration
	now       func() time.Time
}

func NewEngine(store store.Store, notifier Notifier, countdown time.Duration) *Engine {
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		countdown: countdown,
		now:       time.Now,
	}
}

func (e *Engine) StartGame(ctx context.Context, roomID int64, sessionID string) error {
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		if _, err := requireHost(ctx, tx, roomID, sessionID); err != nil {
			return err
		}

		if room.Status != StatusLobby {
			return ErrAlreadyStarted
		}

		// Finish marks only count for the race that is about to start.
		if err := tx.ClearFinished(ctx, roomID); err != nil {
			return err
		}

		now := e.now()
		startTime := now.Add(e.countdown)
		room.Status = StatusCountdown
		room.StartTime = &startTime
		room.EndTime = nil
		if err := tx.UpdateRoom(ctx, room); err != nil {
			return err
		}

		players, err := tx.ListPlayers(ctx, roomID)
		if err != nil {
			return err
		}
		for _, p := range players {
			if err := seedProgress(ctx, tx, roomID, p.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int64("room", roomID).Dur("countdown", e.countdown).Msg("race countdown started")
	notify(e.notifier, roomID)
	return nil
}

func (e *Engine) AdvanceToInProgress(ctx context.Context, roomID int64) error {
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		if room.Status != StatusCountdown {
			return ErrNotCountdown
		}

		endTime := e.now().Add(time.Duration(room.Tier) * time.Second)
		room.Status = StatusInProgress
		room.EndTime = &endTime
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return err
	}

	log.Info().Int64("room", roomID).Msg("race in progress")
	notify(e.notifier, roomID)
	return nil
}

// FinishGame ends a running race. It is a no-op for any other status.
func (e *Engine) FinishGame(ctx context.Context, roomID int64) error {
	var changed bool
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		changed, err = finishRace(ctx, tx, room)
		return err
	})
	if err != nil {
		return err
	}

	if changed {
		log.Info().Int64("room", roomID).Msg("race finished")
		notify(e.notifier, roomID)
	}
	return nil
}

func (e *Engine) RestartGame(ctx context.Context, roomID int64, sessionID string) error {
	err := e.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}

		if _, err := requireHost(ctx, tx, roomID, sessionID); err != nil {
			return err
		}

		if room.Status != StatusFinished {
			return ErrNotFinished
		}

		if err := tx.DeleteProgress(ctx, roomID); err != nil {
			return err
		}
		if err := tx.ClearFinished(ctx, roomID); err != nil {
			return err
		}

		room.Status = StatusLobby
		room.StartTime = nil
		room.EndTime = nil
		return tx.UpdateRoom(ctx, room)
	})
	if err != nil {
		return err
	}

	log.Info().Int64("room", roomID).Msg("race reset to lobby")
	notify(e.notifier, roomID)
	return nil
}

func loadRoom(ctx context.Context, tx store.Store, roomID int64) (*store.Room, error) {
	if roomID <= 0 {
		return nil, ErrRoomNotFound
	}

	room, err := tx.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func loadPlayer(ctx context.Context, tx store.Store, roomID, playerID int64) (*store.Player, error) {
	player, err := tx.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil || player.RoomID != roomID {
		return nil, ErrPlayerNotFound
	}
	return player, nil
}

func requireHost(ctx context.Context, tx store.Store, roomID int64, sessionID string) (*store.Player, error) {
	if sessionID == "" {
		return nil, ErrNotHost
	}

	player, err := tx.GetPlayerBySession(ctx, roomID, sessionID)
	if err != nil {
		return nil, err
	}
	if player == nil || !player.IsHost {
		return nil, ErrNotHost
	}
	return player, nil
}

// seedProgress leaves the player at word zero with no pending input.
func seedProgress(ctx context.Context, tx store.Store, roomID, playerID int64, now time.Time) error {
	existing, err := tx.GetProgress(ctx, roomID, playerID)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.CurrentWord = 0
		existing.Input = ""
		existing.LastUpdate = now
		return tx.UpdateProgress(ctx, existing)
	}

	_, err = tx.CreateProgress(ctx, &store.Progress{
		RoomID:     roomID,
		PlayerID:   playerID,
		LastUpdate: now,
	})
	return err
}

func finishRace(ctx context.Context, tx store.Store, room *store.Room) (bool, error) {
	if room.Status != StatusInProgress {
		return false, nil
	}

	room.Status = StatusFinished
	if err := tx.UpdateRoom(ctx, room); err != nil {
		return false, err
	}
	return true, nil
}

// finishIfAllDone ends the race once every player in the room has finished.
func finishIfAllDone(ctx context.Context, tx store.Store, room *store.Room) (bool, error) {
	if room.Status != StatusInProgress {
		return false, nil
	}

	players, err := tx.ListPlayers(ctx, room.ID)
	if err != nil {
		return false, err
	}
	if len(players) == 0 {
		return false, nil
	}
	for _, p := range players {
		if p.FinishedAt == nil {
			return false, nil
		}
	}
	return finishRace(ctx, tx, room)
}
