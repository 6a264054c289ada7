// Package seats guarantees that a seat slot of a trip is held by at most one ticket at a time.
//
// Reserve and Release are linearizable per seat: concurrent callers for the same seat observe
// a single winner, while operations on different seats proceed independently.
package seats

import "busbooking/entity"

var (
	ErrSeatAlreadyHeld = entity.ErrSeatAlreadyHeld
	ErrNotHeldByTicket = entity.ErrNotHeldByTicket
)
