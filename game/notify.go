package game

import "sync"

// Notifier is told about every committed change to a room.
type Notifier interface {
	RoomChanged(roomID int64)
}

// Fanout forwards changes to every registered Notifier.
type Fanout struct {
	notifiers []Notifier
	mu        sync.RWMutex
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

func (f *Fanout) Add(n Notifier) {
	f.mu.Lock()
	f.notifiers = append(f.notifiers, n)
	f.mu.Unlock()
}

func (f *Fanout) RoomChanged(roomID int64) {
	f.mu.RLock()
	notifiers := f.notifiers
	f.mu.RUnlock()

	for _, n := range notifiers {
		n.RoomChanged(roomID)
	}
}

func notify(n Notifier, roomID int64) {
	if n != nil {
		n.RoomChanged(roomID)
	}
}
