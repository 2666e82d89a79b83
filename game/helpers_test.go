package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"typerace/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// sequenceRand hands out 0, 1, 2, ... modulo n.
type sequenceRand struct {
	mu   sync.Mutex
	next int
}

func (r *sequenceRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.next % n
	r.next++
	return v
}

type recordingNotifier struct {
	mu    sync.Mutex
	rooms []int64
}

func (n *recordingNotifier) RoomChanged(roomID int64) {
	n.mu.Lock()
	n.rooms = append(n.rooms, roomID)
	n.mu.Unlock()
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.rooms)
}

type testEnv struct {
	ctx      context.Context
	store    *store.SQLiteStore
	clock    *fakeClock
	notifier *recordingNotifier
	lobby    *Lobby
	engine   *Engine
	tracker  *Tracker
}

const testText = "a b c"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := &fakeClock{t: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
	notifier := &recordingNotifier{}
	rng := &sequenceRand{}

	pool := NewTextPool(map[int][]string{60: {testText}, 180: {"one two three four"}}, rng)

	lobby := NewLobby(st, pool, notifier)
	lobby.rng = rng
	lobby.now = clock.Now

	engine := NewEngine(st, notifier, DefaultCountdown)
	engine.now = clock.Now

	tracker := NewTracker(st, notifier, true)
	tracker.now = clock.Now

	return &testEnv{
		ctx:      context.Background(),
		store:    st,
		clock:    clock,
		notifier: notifier,
		lobby:    lobby,
		engine:   engine,
		tracker:  tracker,
	}
}

// createRoom opens a 60 second room hosted by session "host".
func (e *testEnv) createRoom(t *testing.T) *CreateResult {
	t.Helper()
	res, err := e.lobby.CreateRoom(e.ctx, "host", "Host", 60)
	require.NoError(t, err)
	return res
}

func (e *testEnv) join(t *testing.T, code, session string) int64 {
	t.Helper()
	res, err := e.lobby.JoinRoom(e.ctx, code, session, session)
	require.NoError(t, err)
	return res.PlayerID
}

func (e *testEnv) room(t *testing.T, roomID int64) *store.Room {
	t.Helper()
	room, err := e.store.GetRoom(e.ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, room)
	return room
}

// startRace takes the room to in_progress.
func (e *testEnv) startRace(t *testing.T, roomID int64) {
	t.Helper()
	require.NoError(t, e.engine.StartGame(e.ctx, roomID, "host"))
	e.clock.Advance(DefaultCountdown)
	require.NoError(t, e.engine.AdvanceToInProgress(e.ctx, roomID))
}
