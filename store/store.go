package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotUnique is returned by unique lookups that match more than one record.
var ErrNotUnique = errors.New("query matched more than one record")

// Store is the persistence boundary for rooms, players and progress.
// Lookups that miss return a nil record and a nil error.
type Store interface {
	// Atomic runs fn as a single transaction. The Store passed to fn must be
	// used for every read and write that belongs to the unit.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	CreateRoom(ctx context.Context, room *Room) (int64, error)
	GetRoom(ctx context.Context, roomID int64) (*Room, error)
	GetRoomByCode(ctx context.Context, code string) (*Room, error)
	ListRoomsByStatus(ctx context.Context, statuses ...string) ([]*Room, error)
	UpdateRoom(ctx context.Context, room *Room) error

	CreatePlayer(ctx context.Context, player *Player) (int64, error)
	GetPlayer(ctx context.Context, playerID int64) (*Player, error)
	GetPlayerBySession(ctx context.Context, roomID int64, sessionID string) (*Player, error)
	ListPlayers(ctx context.Context, roomID int64) ([]*Player, error)
	SetPlayerHost(ctx context.Context, playerID int64, isHost bool) error
	SetPlayerFinished(ctx context.Context, playerID int64, finishedAt *time.Time) error
	ClearFinished(ctx context.Context, roomID int64) error
	DeletePlayer(ctx context.Context, playerID int64) error

	CreateProgress(ctx context.Context, progress *Progress) (int64, error)
	GetProgress(ctx context.Context, roomID, playerID int64) (*Progress, error)
	ListProgress(ctx context.Context, roomID int64) ([]*Progress, error)
	UpdateProgress(ctx context.Context, progress *Progress) error
	DeleteProgress(ctx context.Context, roomID int64) error
	DeletePlayerProgress(ctx context.Context, roomID, playerID int64) error

	Close() error
}

type Room struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	Tier        int        `json:"duration"`
	Text        string     `json:"text"`
	HostSession string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

type Player struct {
	ID         int64      `json:"id"`
	RoomID     int64      `json:"roomId"`
	SessionID  string     `json:"-"`
	Name       string     `json:"name"`
	IsHost     bool       `json:"isHost"`
	JoinedAt   time.Time  `json:"joinedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type Progress struct {
	ID          int64     `json:"id"`
	RoomID      int64     `json:"roomId"`
	PlayerID    int64     `json:"playerId"`
	CurrentWord int       `json:"currentWord"`
	Input       string    `json:"input"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type SQLiteStore struct {
	db   *sql.DB
	q    querier
	inTx bool
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Immediate transactions take the write lock up front, so two Atomic
	// units touching the same room never interleave their read-check-write.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

func (s *SQLiteStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rooms

const roomColumns = "id, code, status, tier, text, host_session, created_at, start_time, end_time"

func (s *SQLiteStore) CreateRoom(ctx context.Context, room *Room) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO rooms (code, status, tier, text, host_session, created_at, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		room.Code, room.Status, room.Tier, room.Text, room.HostSession,
		toMillis(room.CreatedAt), nullMillis(room.StartTime), nullMillis(room.EndTime),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetRoom(ctx context.Context, roomID int64) (*Room, error) {
	room, err := scanRoom(s.q.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = ?", roomID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (s *SQLiteStore) GetRoomByCode(ctx context.Context, code string) (*Room, error) {
	rooms, err := s.queryRooms(ctx, "SELECT "+roomColumns+" FROM rooms WHERE code = ? LIMIT 2", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}
	return unique(rooms)
}

func (s *SQLiteStore) ListRoomsByStatus(ctx context.Context, statuses ...string) ([]*Room, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	query := "SELECT " + roomColumns + " FROM rooms WHERE status IN (?" + strings.Repeat(",?", len(statuses)-1) + ") ORDER BY id"
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	rooms, err := s.queryRooms(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *SQLiteStore) UpdateRoom(ctx context.Context, room *Room) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE rooms SET status = ?, start_time = ?, end_time = ? WHERE id = ?",
		room.Status, nullMillis(room.StartTime), nullMillis(room.EndTime), room.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryRooms(ctx context.Context, query string, args ...any) ([]*Room, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func scanRoom(row scanner) (*Room, error) {
	room := &Room{}
	var createdAt int64
	var startTime, endTime sql.NullInt64
	if err := row.Scan(&room.ID, &room.Code, &room.Status, &room.Tier, &room.Text, &room.HostSession,
		&createdAt, &startTime, &endTime); err != nil {
		return nil, err
	}
	room.CreatedAt = fromMillis(createdAt)
	room.StartTime = fromNullMillis(startTime)
	room.EndTime = fromNullMillis(endTime)
	return room, nil
}

// Players

const playerColumns = "id, room_id, session_id, name, is_host, joined_at, finished_at"

func (s *SQLiteStore) CreatePlayer(ctx context.Context, player *Player) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO players (room_id, session_id, name, is_host, joined_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		player.RoomID, player.SessionID, player.Name, boolToInt(player.IsHost),
		toMillis(player.JoinedAt), nullMillis(player.FinishedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create player: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID int64) (*Player, error) {
	player, err := scanPlayer(s.q.QueryRowContext(ctx,
		"SELECT "+playerColumns+" FROM players WHERE id = ?", playerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return player, nil
}

func (s *SQLiteStore) GetPlayerBySession(ctx context.Context, roomID int64, sessionID string) (*Player, error) {
	players, err := s.queryPlayers(ctx,
		"SELECT "+playerColumns+" FROM players WHERE room_id = ? AND session_id = ? LIMIT 2",
		roomID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by session: %w", err)
	}
	return unique(players)
}

func (s *SQLiteStore) ListPlayers(ctx context.Context, roomID int64) ([]*Player, error) {
	players, err := s.queryPlayers(ctx,
		"SELECT "+playerColumns+" FROM players WHERE room_id = ? ORDER BY joined_at, id",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

func (s *SQLiteStore) SetPlayerHost(ctx context.Context, playerID int64, isHost bool) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE players SET is_host = ? WHERE id = ?",
		boolToInt(isHost), playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player host: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetPlayerFinished(ctx context.Context, playerID int64, finishedAt *time.Time) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE players SET finished_at = ? WHERE id = ?",
		nullMillis(finishedAt), playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player finish: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearFinished(ctx context.Context, roomID int64) error {
	if _, err := s.q.ExecContext(ctx, "UPDATE players SET finished_at = NULL WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("failed to clear finish times: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePlayer(ctx context.Context, playerID int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM players WHERE id = ?", playerID); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryPlayers(ctx context.Context, query string, args ...any) ([]*Player, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func scanPlayer(row scanner) (*Player, error) {
	player := &Player{}
	var isHost int
	var joinedAt int64
	var finishedAt sql.NullInt64
	if err := row.Scan(&player.ID, &player.RoomID, &player.SessionID, &player.Name, &isHost,
		&joinedAt, &finishedAt); err != nil {
		return nil, err
	}
	player.IsHost = isHost == 1
	player.JoinedAt = fromMillis(joinedAt)
	player.FinishedAt = fromNullMillis(finishedAt)
	return player, nil
}

// Progress

const progressColumns = "id, room_id, player_id, current_word, input, last_update"

func (s *SQLiteStore) CreateProgress(ctx context.Context, progress *Progress) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		"INSERT INTO progress (room_id, player_id, current_word, input, last_update) VALUES (?, ?, ?, ?, ?)",
		progress.RoomID, progress.PlayerID, progress.CurrentWord, progress.Input, toMillis(progress.LastUpdate),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create progress: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetProgress(ctx context.Context, roomID, playerID int64) (*Progress, error) {
	progress, err := scanProgress(s.q.QueryRowContext(ctx,
		"SELECT "+progressColumns+" FROM progress WHERE room_id = ? AND player_id = ?",
		roomID, playerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return progress, nil
}

func (s *SQLiteStore) ListProgress(ctx context.Context, roomID int64) ([]*Progress, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+progressColumns+" FROM progress WHERE room_id = ? ORDER BY id",
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var list []*Progress
	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		list = append(list, progress)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, progress *Progress) error {
	_, err := s.q.ExecContext(ctx,
		"UPDATE progress SET current_word = ?, input = ?, last_update = ? WHERE id = ?",
		progress.CurrentWord, progress.Input, toMillis(progress.LastUpdate), progress.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProgress(ctx context.Context, roomID int64) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM progress WHERE room_id = ?", roomID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeletePlayerProgress(ctx context.Context, roomID, playerID int64) error {
	_, err := s.q.ExecContext(ctx,
		"DELETE FROM progress WHERE room_id = ? AND player_id = ?",
		roomID, playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete player progress: %w", err)
	}
	return nil
}

func scanProgress(row scanner) (*Progress, error) {
	progress := &Progress{}
	var lastUpdate int64
	if err := row.Scan(&progress.ID, &progress.RoomID, &progress.PlayerID, &progress.CurrentWord,
		&progress.Input, &lastUpdate); err != nil {
		return nil, err
	}
	progress.LastUpdate = fromMillis(lastUpdate)
	return progress, nil
}

func (s *SQLiteStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

func unique[T any](records []*T) (*T, error) {
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, ErrNotUnique
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
