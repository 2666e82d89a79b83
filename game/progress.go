package game

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"typerace/store"
)

var errNegativeWord = fmt.Errorf("%w: word index must not be negative", ErrInvalidArgument)

// Tracker records where each player is in the race text.
//
// With strict set, UpdateProgress refuses to move a player backwards or past
// the end of the text. Without it, clients are trusted and the latest write
// wins.
type Tracker struct {
	store    store.Store
	notifier Notifier
	strict   bool
	now      func() time.Time
}

func NewTracker(store store.Store, notifier Notifier, strict bool) *Tracker {
	return &Tracker{
		store:    store,
		notifier: notifier,
		strict:   strict,
		now:      time.Now,
	}
}

// UpdateProgress upserts the single progress record for the player.
func (t *Tracker) UpdateProgress(ctx context.Context, roomID, playerID int64, currentWord int, input string) error {
	if currentWord < 0 {
		return errNegativeWord
	}

	err := t.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if _, err := loadPlayer(ctx, tx, roomID, playerID); err != nil {
			return err
		}

		existing, err := tx.GetProgress(ctx, roomID, playerID)
		if err != nil {
			return err
		}

		if t.strict {
			if currentWord > len(Words(room.Text)) {
				return ErrProgressOutOfRange
			}
			if existing != nil && currentWord < existing.CurrentWord {
				return ErrProgressRegressed
			}
		}

		return writeProgress(ctx, tx, existing, roomID, playerID, currentWord, input, t.now())
	})
	if err != nil {
		return err
	}

	notify(t.notifier, roomID)
	return nil
}

// MarkPlayerFinished stamps the player's finish time while the race is
// running. Only the first call has an effect; progress is not touched.
func (t *Tracker) MarkPlayerFinished(ctx context.Context, playerID int64) error {
	var roomID int64
	changed := false
	err := t.store.Atomic(ctx, func(tx store.Store) error {
		player, err := tx.GetPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		if player == nil {
			return ErrPlayerNotFound
		}
		roomID = player.RoomID

		room, err := loadRoom(ctx, tx, player.RoomID)
		if err != nil {
			return err
		}
		if room.Status != StatusInProgress {
			return ErrRaceNotRunning
		}

		if player.FinishedAt != nil {
			return nil
		}

		changed = true
		return completePlayer(ctx, tx, room, player, t.now())
	})
	if err != nil {
		return err
	}

	if changed {
		notify(t.notifier, roomID)
	}
	return nil
}

// SubmitInput applies what the player has typed for the current word.
//
// Input ending in whitespace is checked against the expected word: an exact
// match (after trimming) advances the player and clears the input, anything
// else is kept as pending input. The last word of the text is also accepted
// without a trailing delimiter.
func (t *Tracker) SubmitInput(ctx context.Context, roomID, playerID int64, input string) (*SubmitResult, error) {
	result := &SubmitResult{}
	err := t.store.Atomic(ctx, func(tx store.Store) error {
		room, err := loadRoom(ctx, tx, roomID)
		if err != nil {
			return err
		}
		player, err := loadPlayer(ctx, tx, roomID, playerID)
		if err != nil {
			return err
		}
		if room.Status != StatusInProgress {
			return ErrRaceNotRunning
		}

		existing, err := tx.GetProgress(ctx, roomID, playerID)
		if err != nil {
			return err
		}

		words := Words(room.Text)
		current := 0
		if existing != nil {
			current = existing.CurrentWord
		}
		result.CurrentWord = current

		if player.FinishedAt != nil {
			result.Finished = true
			return nil
		}

		if current < len(words) {
			typed := strings.TrimSpace(input)
			lastWord := current == len(words)-1
			if (endsWithSpace(input) || lastWord) && typed == words[current] {
				current++
				input = ""
				result.Advanced = true
			}
		}
		result.CurrentWord = current

		now := t.now()
		if err := writeProgress(ctx, tx, existing, roomID, playerID, current, input, now); err != nil {
			return err
		}

		if current >= len(words) {
			result.Finished = true
			return completePlayer(ctx, tx, room, player, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Finished {
		log.Debug().Int64("room", roomID).Int64("player", playerID).Msg("player completed the text")
	}
	notify(t.notifier, roomID)
	return result, nil
}

func (t *Tracker) GetProgress(ctx context.Context, roomID int64) ([]*store.Progress, error) {
	return t.store.ListProgress(ctx, roomID)
}

// Standings ranks the room's players. The order is computed on every call.
func (t *Tracker) Standings(ctx context.Context, roomID int64) ([]Standing, error) {
	room, err := loadRoom(ctx, t.store, roomID)
	if err != nil {
		return nil, err
	}

	players, err := t.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	progress, err := t.store.ListProgress(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return Rank(players, progress, len(Words(room.Text)), room.StartTime), nil
}

func writeProgress(ctx context.Context, tx store.Store, existing *store.Progress, roomID, playerID int64, currentWord int, input string, now time.Time) error {
	if existing != nil {
		existing.CurrentWord = currentWord
		existing.Input = input
		existing.LastUpdate = now
		return tx.UpdateProgress(ctx, existing)
	}

	_, err := tx.CreateProgress(ctx, &store.Progress{
		RoomID:      roomID,
		PlayerID:    playerID,
		CurrentWord: currentWord,
		Input:       input,
		LastUpdate:  now,
	})
	return err
}

// completePlayer stamps the finish time and finishes the race when nobody
// is left typing. Progress is left as the caller wrote it.
func completePlayer(ctx context.Context, tx store.Store, room *store.Room, player *store.Player, now time.Time) error {
	if err := tx.SetPlayerFinished(ctx, player.ID, &now); err != nil {
		return err
	}
	player.FinishedAt = &now

	_, err := finishIfAllDone(ctx, tx, room)
	return err
}

func endsWithSpace(s string) bool {
	r, size := utf8.DecodeLastRuneInString(s)
	return size > 0 && unicode.IsSpace(r)
}
