package seats

import (
	"context"
	"sync"
	"time"

	"busbooking/entity"
)

type slot struct {
	mu         sync.Mutex
	ticketID   int64
	status     entity.SeatHoldStatus
	releasedAt time.Time
	// pruned slots are no longer in the map; callers that raced Prune look the seat up again
	pruned bool
}

// LocalGuard keeps seat holds in process memory. The map lock is only held for the
// lookup, so operations on different seats never wait on each other.
type LocalGuard struct {
	mu    sync.Mutex
	slots map[entity.SeatKey]*slot
	now   func() time.Time
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{
		slots: make(map[entity.SeatKey]*slot),
		now:   time.Now,
	}
}

func (g *LocalGuard) slot(key entity.SeatKey, create bool) *slot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s, ok := g.slots[key]
	if !ok && create {
		s = &slot{}
		g.slots[key] = s
	}
	return s
}

// lockSlot returns the slot of key locked, or nil when the seat is unknown and create is false.
func (g *LocalGuard) lockSlot(key entity.SeatKey, create bool) *slot {
	for {
		s := g.slot(key, create)
		if s == nil {
			return nil
		}

		s.mu.Lock()
		if !s.pruned {
			return s
		}
		s.mu.Unlock()
	}
}

func (g *LocalGuard) Reserve(_ context.Context, key entity.SeatKey, ticketID int64) error {
	s := g.lockSlot(key, true)
	defer s.mu.Unlock()

	if s.status == entity.SeatHeld {
		if s.ticketID == ticketID {
			return nil
		}
		return ErrSeatAlreadyHeld
	}

	s.ticketID = ticketID
	s.status = entity.SeatHeld
	s.releasedAt = time.Time{}

	return nil
}

func (g *LocalGuard) Release(_ context.Context, key entity.SeatKey, ticketID int64) error {
	s := g.lockSlot(key, false)
	if s == nil {
		return ErrNotHeldByTicket
	}
	defer s.mu.Unlock()

	if s.ticketID != ticketID {
		return ErrNotHeldByTicket
	}

	if s.status != entity.SeatReleased {
		s.status = entity.SeatReleased
		s.releasedAt = g.now()
	}

	return nil
}

func (g *LocalGuard) Holder(_ context.Context, key entity.SeatKey) (entity.SeatReservation, bool, error) {
	s := g.lockSlot(key, false)
	if s == nil {
		return entity.SeatReservation{}, false, nil
	}
	defer s.mu.Unlock()

	return entity.SeatReservation{Key: key, TicketID: s.ticketID, Status: s.status}, true, nil
}

// Load seeds the guard with holds recovered from durable storage, typically on startup.
func (g *LocalGuard) Load(_ context.Context, holds []entity.SeatReservation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, h := range holds {
		s := &slot{ticketID: h.TicketID, status: h.Status}
		if h.Status == entity.SeatReleased {
			s.releasedAt = g.now()
		}
		g.slots[h.Key] = s
	}

	return nil
}

// Prune forgets seats released before releasedBefore and returns how many were dropped.
// A later release of a forgotten seat reports ErrNotHeldByTicket, which callers treat as
// already released.
func (g *LocalGuard) Prune(_ context.Context, releasedBefore time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	pruned := 0
	for key, s := range g.slots {
		s.mu.Lock()
		if s.status == entity.SeatReleased && s.releasedAt.Before(releasedBefore) {
			s.pruned = true
			delete(g.slots, key)
			pruned++
		}
		s.mu.Unlock()
	}

	return pruned
}
