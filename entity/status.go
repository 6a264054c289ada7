package entity

type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "RESERVED"
	TicketStatusConfirmed TicketStatus = "CONFIRMED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
	TicketStatusCompleted TicketStatus = "COMPLETED"
	TicketStatusExpired   TicketStatus = "EXPIRED"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReserved:  {TicketStatusConfirmed, TicketStatusCancelled, TicketStatusExpired},
	TicketStatusConfirmed: {TicketStatusCancelled, TicketStatusCompleted},
}

func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusReserved, TicketStatusConfirmed, TicketStatusCancelled, TicketStatusCompleted, TicketStatusExpired:
		return true
	}
	return false
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return len(ticketTransitions[s]) == 0
}

// IsActive reports whether the ticket still counts towards its booking.
// Expired tickets are treated like cancelled ones.
func (s TicketStatus) IsActive() bool {
	return s != TicketStatusCancelled && s != TicketStatusExpired
}

// HoldsSeat reports whether a ticket in this status owns its seat.
func (s TicketStatus) HoldsSeat() bool {
	return s.IsActive()
}

func (s TicketStatus) String() string {
	return string(s)
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) String() string {
	return string(s)
}
