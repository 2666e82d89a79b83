package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"typerace/store"
)

const schedulerTimeout = 5 * time.Second

type stopper interface {
	Stop() bool
}

type timerEntry struct {
	timer stopper
	gen   uint64
}

// Scheduler fires the timed transitions of a race on the server: countdown
// to in_progress at startTime, in_progress to finished at endTime. Clients
// may fire the same transitions; whoever is late gets ErrInvalidState or a
// no-op, which the scheduler ignores.
type Scheduler struct {
	store     store.Store
	engine    *Engine
	timers    map[int64]timerEntry
	gen       uint64
	stopped   bool
	mu        sync.Mutex
	syncMu    sync.Mutex
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
}

func NewScheduler(store store.Store, engine *Engine) *Scheduler {
	return &Scheduler{
		store:  store,
		engine: engine,
		timers: make(map[int64]timerEntry),
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// RoomChanged re-arms the room's timer from its stored state. Reads and
// arming are serialized under syncMu, so the last notification to run always
// arms from a read taken after every commit that preceded it.
func (s *Scheduler) RoomChanged(roomID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerTimeout)
	defer cancel()

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Int64("room", roomID).Msg("scheduler failed to load room")
		return
	}
	if room == nil {
		s.disarm(roomID)
		return
	}
	s.arm(room)
}

// Resume arms timers for races that were running when the process stopped.
func (s *Scheduler) Resume(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	rooms, err := s.store.ListRoomsByStatus(ctx, StatusCountdown, StatusInProgress)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		s.arm(room)
	}
	log.Info().Int("rooms", len(rooms)).Msg("scheduler resumed")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, e := range s.timers {
		e.timer.Stop()
		delete(s.timers, id)
	}
}

// Pending reports how many rooms have a timer armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) arm(room *store.Room) {
	var at *time.Time
	var action func(ctx context.Context, roomID int64) error

	switch room.Status {
	case StatusCountdown:
		at, action = room.StartTime, s.engine.AdvanceToInProgress
	case StatusInProgress:
		at, action = room.EndTime, s.engine.FinishGame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.timers[room.ID]; ok {
		e.timer.Stop()
		delete(s.timers, room.ID)
	}
	if s.stopped || at == nil || action == nil {
		return
	}

	roomID := room.ID
	s.gen++
	gen := s.gen
	delay := max(0, at.Sub(s.now()))
	timer := s.afterFunc(delay, func() {
		s.fire(roomID, action)
		s.release(roomID, gen)
	})
	s.timers[roomID] = timerEntry{timer: timer, gen: gen}
}

// release forgets a timer that has fired unless it was already replaced.
func (s *Scheduler) release(roomID int64, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.timers[roomID]; ok && e.gen == gen {
		delete(s.timers, roomID)
	}
}

func (s *Scheduler) disarm(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.timers[roomID]; ok {
		e.timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Scheduler) fire(roomID int64, action func(ctx context.Context, roomID int64) error) {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerTimeout)
	defer cancel()

	err := action(ctx, roomID)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotFound):
		log.Debug().Err(err).Int64("room", roomID).Msg("scheduled transition already applied")
	default:
		log.Error().Err(err).Int64("room", roomID).Msg("scheduled transition failed")
	}
}
