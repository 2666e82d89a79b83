package game

import (
	"context"
	"errors"

	"typerace/store"
)

const maxCodeAttempts = 16

var errCodeSpaceExhausted = errors.New("could not allocate a free room code")

func generateRoomCode(rng Rand) string {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		code[i] = RoomCodeChars[rng.IntN(len(RoomCodeChars))]
	}
	return string(code)
}

// uniqueRoomCode must run inside the same Atomic unit that inserts the room.
func uniqueRoomCode(ctx context.Context, tx store.Store, rng Rand) (string, error) {
	for range maxCodeAttempts {
		code := generateRoomCode(rng)
		existing, err := tx.GetRoomByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", errCodeSpaceExhausted
}
