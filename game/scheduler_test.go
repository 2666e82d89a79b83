package game

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typerace/store"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeTimers struct {
	mu    sync.Mutex
	armed []*fakeTimer
}

func (f *fakeTimers) afterFunc(d time.Duration, fn func()) stopper {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	f.armed = append(f.armed, t)
	return t
}

func (f *fakeTimers) last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.armed[len(f.armed)-1]
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

// stallingStore holds the first GetRoom result until release is closed.
type stallingStore struct {
	store.Store
	stalled atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) GetRoom(ctx context.Context, id int64) (*store.Room, error) {
	room, err := s.Store.GetRoom(ctx, id)
	if s.stalled.CompareAndSwap(false, true) {
		close(s.entered)
		<-s.release
	}
	return room, err
}

func newTestScheduler(env *testEnv) (*Scheduler, *fakeTimers) {
	timers := &fakeTimers{}
	s := NewScheduler(env.store, env.engine)
	s.now = env.clock.Now
	s.afterFunc = timers.afterFunc
	return s, timers
}

func TestScheduler(t *testing.T) {
	t.Run("drives countdown and deadline", func(t *testing.T) {
		env := newTestEnv(t)
		s, timers := newTestScheduler(env)
		env.engine.notifier = NewFanout(env.notifier, s)
		created := env.createRoom(t)

		require.NoError(t, env.engine.StartGame(env.ctx, created.RoomID, "host"))
		require.Equal(t, 1, timers.count())
		assert.Equal(t, DefaultCountdown, timers.last().delay)
		assert.Equal(t, 1, s.Pending())

		env.clock.Advance(DefaultCountdown)
		timers.last().fn()

		room := env.room(t, created.RoomID)
		assert.Equal(t, StatusInProgress, room.Status)
		require.Equal(t, 2, timers.count())
		assert.Equal(t, 60*time.Second, timers.last().delay)

		env.clock.Advance(60 * time.Second)
		timers.last().fn()

		assert.Equal(t, StatusFinished, env.room(t, created.RoomID).Status)
		assert.Equal(t, 0, s.Pending())
	})

	t.Run("late timer is harmless", func(t *testing.T) {
		env := newTestEnv(t)
		s, timers := newTestScheduler(env)
		env.engine.notifier = NewFanout(env.notifier, s)
		created := env.createRoom(t)

		require.NoError(t, env.engine.StartGame(env.ctx, created.RoomID, "host"))
		countdown := timers.last()

		// A client advanced the room first.
		require.NoError(t, env.engine.AdvanceToInProgress(env.ctx, created.RoomID))
		assert.True(t, countdown.stopped)

		countdown.fn()
		assert.Equal(t, StatusInProgress, env.room(t, created.RoomID).Status)
		assert.Equal(t, 1, s.Pending(), "deadline timer stays armed")
	})

	t.Run("resume arms running rooms", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		env.startRace(t, created.RoomID)
		env.createRoom(t)

		s, timers := newTestScheduler(env)
		require.NoError(t, s.Resume(env.ctx))
		assert.Equal(t, 1, timers.count())
		assert.Equal(t, 1, s.Pending())

		s.Stop()
		assert.True(t, timers.last().stopped)
		assert.Equal(t, 0, s.Pending())

		s.RoomChanged(created.RoomID)
		assert.Equal(t, 1, timers.count(), "stopped scheduler arms nothing")
	})

	t.Run("overdue deadlines fire immediately", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)
		env.startRace(t, created.RoomID)
		env.clock.Advance(10 * time.Minute)

		s, timers := newTestScheduler(env)
		s.RoomChanged(created.RoomID)
		assert.Equal(t, time.Duration(0), timers.last().delay)
	})

	t.Run("slow notification cannot disarm a newer state", func(t *testing.T) {
		env := newTestEnv(t)
		created := env.createRoom(t)

		slow := &stallingStore{
			Store:   env.store,
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		timers := &fakeTimers{}
		s := NewScheduler(slow, env.engine)
		s.now = env.clock.Now
		s.afterFunc = timers.afterFunc
		env.engine.notifier = NewFanout(env.notifier, s)

		lobbyDone := make(chan struct{})
		go func() {
			s.RoomChanged(created.RoomID)
			close(lobbyDone)
		}()
		<-slow.entered

		startErr := make(chan error, 1)
		go func() {
			startErr <- env.engine.StartGame(env.ctx, created.RoomID, "host")
		}()
		require.Eventually(t, func() bool {
			room, err := env.store.GetRoom(env.ctx, created.RoomID)
			return err == nil && room.Status == StatusCountdown
		}, 5*time.Second, 10*time.Millisecond)

		close(slow.release)
		<-lobbyDone
		require.NoError(t, <-startErr)

		assert.Equal(t, 1, s.Pending(), "countdown room keeps its timer")
		require.Equal(t, 1, timers.count())
		assert.Equal(t, DefaultCountdown, timers.last().delay)
	})
}
