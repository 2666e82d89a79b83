package game

import (
	"time"

	"typerace/store"
)

const (
	StatusLobby      = "lobby"
	StatusCountdown  = "countdown"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

const (
	DefaultCountdown = 3 * time.Second
	MaxNameLength    = 32
	RoomCodeLength   = 4
	RoomCodeChars    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type CreateResult struct {
	Code     string `json:"code"`
	RoomID   int64  `json:"roomId"`
	PlayerID int64  `json:"playerId"`
}

type JoinResult struct {
	RoomID   int64 `json:"roomId"`
	PlayerID int64 `json:"playerId"`
}

// SubmitResult reports what a typed input did to the player's position.
type SubmitResult struct {
	CurrentWord int  `json:"currentWord"`
	Advanced    bool `json:"advanced"`
	Finished    bool `json:"finished"`
}

// Standing is one computed leaderboard row.
type Standing struct {
	Place       int        `json:"place"`
	Label       string     `json:"label"`
	PlayerID    int64      `json:"playerId"`
	Name        string     `json:"name"`
	CurrentWord int        `json:"currentWord"`
	Percent     float64    `json:"percent"`
	Finished    bool       `json:"finished"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
	ElapsedMs   *int64     `json:"elapsedMs,omitempty"`
}

// Snapshot is everything a race view subscribes to for one room.
type Snapshot struct {
	Room       *store.Room       `json:"room"`
	Players    []*store.Player   `json:"players"`
	Progress   []*store.Progress `json:"progress"`
	Standings  []Standing        `json:"standings"`
	TotalWords int               `json:"totalWords"`
	ServerTime time.Time         `json:"serverTime"`
}
