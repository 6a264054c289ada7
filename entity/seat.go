package entity

import "fmt"

// SeatKey identifies one seat slot on one trip.
type SeatKey struct {
	TripID   int64
	SeatCode string
}

func (k SeatKey) String() string {
	return fmt.Sprintf("%d/%s", k.TripID, k.SeatCode)
}

type SeatHoldStatus string

const (
	SeatHeld     SeatHoldStatus = "HELD"
	SeatReleased SeatHoldStatus = "RELEASED"
)

// SeatReservation is the guard's record of who holds (or last held) a seat.
type SeatReservation struct {
	Key      SeatKey
	TicketID int64
	Status   SeatHoldStatus
}
