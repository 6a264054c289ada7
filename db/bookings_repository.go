package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"busbooking/entity"
	"busbooking/pubsub/bus"
	"busbooking/pubsub/outbox"
)

const (
	bookingColumns = `booking_id, status, total_price, number_of_tickets, user_id, trip_id,
		order_code, payment_id, admin_note, created_at, updated_at`
	ticketColumns = `ticket_id, booking_id, trip_id, seat_id, seat_code, price, status, payment_id,
		admin_note, cancellation_reason, refund_amount, cancelled_at, created_at, updated_at`

	activeSeatConstraint = "tickets_active_seat_idx"
	orderCodeConstraint  = "bookings_order_code_key"
)

// UpdateFn receives the current state of a booking and returns its new state together with
// events to be published atomically with it.
type UpdateFn = func(ctx context.Context, booking entity.Booking) (entity.Booking, []entity.Event, error)

type BookingsRepository struct {
	db *sqlx.DB
}

func NewBookingsRepository(db *sqlx.DB) BookingsRepository {
	if db == nil {
		panic("db is nil")
	}

	return BookingsRepository{db: db}
}

// NextTicketIDs allocates ids for tickets that are not stored yet.
func (r BookingsRepository) NextTicketIDs(ctx context.Context, n int) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT nextval('tickets_ticket_id_seq') FROM generate_series(1, $1)
	`, n)
	if err != nil {
		return nil, fmt.Errorf("could not allocate ticket ids: %w", err)
	}

	return ids, nil
}

// Add stores a new booking with its tickets and publishes BookingCreated_v1.
func (r BookingsRepository) Add(ctx context.Context, booking entity.Booking) (entity.Booking, error) {
	err := UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		rows, err := sqlx.NamedQueryContext(ctx, tx, `
			INSERT INTO bookings (status, total_price, number_of_tickets, user_id, trip_id,
				order_code, payment_id, admin_note, created_at, updated_at)
			VALUES (:status, :total_price, :number_of_tickets, :user_id, :trip_id,
				:order_code, :payment_id, :admin_note, :created_at, :updated_at)
			RETURNING booking_id
		`, booking)
		if err != nil {
			return mapConstraintViolation(err)
		}
		if rows.Next() {
			err = rows.Scan(&booking.ID)
		}
		closeErr := rows.Close()
		if err != nil {
			return fmt.Errorf("could not read booking id: %w", err)
		}
		if closeErr != nil {
			return mapConstraintViolation(closeErr)
		}

		for i := range booking.Tickets {
			booking.Tickets[i].BookingID = booking.ID

			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO tickets (`+ticketColumns+`)
				VALUES (:ticket_id, :booking_id, :trip_id, :seat_id, :seat_code, :price, :status, :payment_id,
					:admin_note, :cancellation_reason, :refund_amount, :cancelled_at, :created_at, :updated_at)
			`, booking.Tickets[i])
			if err != nil {
				return mapConstraintViolation(err)
			}
		}

		return publish(ctx, tx, entity.BookingCreated_v1{
			Header:     entity.NewEventHeaderWithIdempotencyKey(booking.OrderCode),
			BookingID:  booking.ID,
			UserID:     booking.UserID,
			TripID:     booking.TripID,
			OrderCode:  booking.OrderCode,
			TotalPrice: booking.TotalPrice,
			TicketIDs: lo.Map(booking.Tickets, func(t entity.Ticket, _ int) int64 {
				return t.ID
			}),
			SeatCodes: lo.Map(booking.Tickets, func(t entity.Ticket, _ int) string {
				return t.SeatCode
			}),
		})
	})
	if err != nil {
		return entity.Booking{}, err
	}

	return booking, nil
}

func mapConstraintViolation(err error) error {
	constraint, ok := uniqueViolationConstraint(err)
	if !ok {
		return fmt.Errorf("could not store booking: %w", err)
	}

	switch constraint {
	case activeSeatConstraint:
		return entity.ErrSeatAlreadyHeld
	case orderCodeConstraint:
		return entity.ValidationErrors{{Field: "orderCode", Message: "is already used"}}
	default:
		return fmt.Errorf("could not store booking: %w", err)
	}
}

func (r BookingsRepository) Get(ctx context.Context, bookingID int64) (entity.Booking, error) {
	return getBooking(ctx, r.db, bookingID, false)
}

func (r BookingsRepository) GetTicket(ctx context.Context, ticketID int64) (entity.Ticket, error) {
	var ticket entity.Ticket
	err := r.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = $1`, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("ticket %d: %w", ticketID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket %d: %w", ticketID, err)
	}

	return ticket, nil
}

func (r BookingsRepository) Find(ctx context.Context, filter entity.BookingFilter) ([]entity.Booking, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.TripID != 0 {
		args = append(args, filter.TripID)
		conditions = append(conditions, fmt.Sprintf("trip_id = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY booking_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var bookings []entity.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("could not find bookings: %w", err)
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+` FROM tickets WHERE booking_id = ANY($1) ORDER BY ticket_id
	`, pq.Array(lo.Map(bookings, func(b entity.Booking, _ int) int64 {
		return b.ID
	})))
	if err != nil {
		return nil, fmt.Errorf("could not find tickets of bookings: %w", err)
	}

	byBooking := lo.GroupBy(tickets, func(t entity.Ticket) int64 {
		return t.BookingID
	})
	for i := range bookings {
		bookings[i].Tickets = byBooking[bookings[i].ID]
	}

	return bookings, nil
}

// UpdateByID locks the booking row for the duration of updateFn, so updates of one booking
// are applied one after another.
func (r BookingsRepository) UpdateByID(ctx context.Context, bookingID int64, updateFn UpdateFn) (entity.Booking, error) {
	var updated entity.Booking

	err := UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		updated, err = update(ctx, tx, bookingID, updateFn)
		return err
	})
	if err != nil {
		return entity.Booking{}, err
	}

	return updated, nil
}

func (r BookingsRepository) UpdateByTicketID(ctx context.Context, ticketID int64, updateFn UpdateFn) (entity.Booking, error) {
	var updated entity.Booking

	err := UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var bookingID int64
		err := tx.GetContext(ctx, &bookingID, `SELECT booking_id FROM tickets WHERE ticket_id = $1`, ticketID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ticket %d: %w", ticketID, entity.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("could not get booking of ticket %d: %w", ticketID, err)
		}

		updated, err = update(ctx, tx, bookingID, updateFn)
		return err
	})
	if err != nil {
		return entity.Booking{}, err
	}

	return updated, nil
}

func update(ctx context.Context, tx *sqlx.Tx, bookingID int64, updateFn UpdateFn) (entity.Booking, error) {
	booking, err := getBooking(ctx, tx, bookingID, true)
	if err != nil {
		return entity.Booking{}, err
	}

	updated, changed, events, err := applyUpdate(ctx, booking, updateFn)
	if err != nil {
		return entity.Booking{}, err
	}

	_, err = tx.NamedExecContext(ctx, `
		UPDATE bookings SET
			status = :status,
			total_price = :total_price,
			number_of_tickets = :number_of_tickets,
			payment_id = :payment_id,
			admin_note = :admin_note,
			updated_at = :updated_at
		WHERE booking_id = :booking_id
	`, updated)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not update booking %d: %w", bookingID, err)
	}

	for _, ticket := range changed {
		_, err = tx.NamedExecContext(ctx, `
			UPDATE tickets SET
				status = :status,
				payment_id = :payment_id,
				admin_note = :admin_note,
				cancellation_reason = :cancellation_reason,
				refund_amount = :refund_amount,
				cancelled_at = :cancelled_at,
				updated_at = :updated_at
			WHERE ticket_id = :ticket_id
		`, ticket)
		if err != nil {
			return entity.Booking{}, fmt.Errorf("could not update ticket %d: %w", ticket.ID, err)
		}
	}

	if err := publish(ctx, tx, events...); err != nil {
		return entity.Booking{}, err
	}

	return updated, nil
}

// applyUpdate runs updateFn and reports the tickets it changed. updateFn may modify the tickets
// of the booking it receives in place, so they are compared against a copy taken beforehand.
func applyUpdate(ctx context.Context, booking entity.Booking, updateFn UpdateFn) (entity.Booking, []entity.Ticket, []entity.Event, error) {
	before := booking.Clone()

	updated, events, err := updateFn(ctx, booking)
	if err != nil {
		return entity.Booking{}, nil, nil, err
	}

	changed := lo.Filter(updated.Tickets, func(t entity.Ticket, _ int) bool {
		previous, ok := before.Ticket(t.ID)
		return ok && previous != t
	})

	return updated, changed, events, nil
}

func getBooking(ctx context.Context, q sqlx.QueryerContext, bookingID int64, forUpdate bool) (entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var booking entity.Booking
	err := sqlx.GetContext(ctx, q, &booking, query, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %d: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking %d: %w", bookingID, err)
	}

	err = sqlx.SelectContext(ctx, q, &booking.Tickets, `
		SELECT `+ticketColumns+` FROM tickets WHERE booking_id = $1 ORDER BY ticket_id
	`, bookingID)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get tickets of booking %d: %w", bookingID, err)
	}

	return booking, nil
}

func publish(ctx context.Context, tx *sqlx.Tx, events ...entity.Event) error {
	if len(events) == 0 {
		return nil
	}

	outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
	if err != nil {
		return fmt.Errorf("could not create outbox publisher: %w", err)
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return fmt.Errorf("could not create event bus: %w", err)
	}

	for _, event := range events {
		if err := eventBus.Publish(ctx, event); err != nil {
			return fmt.Errorf("could not publish %T: %w", event, err)
		}
	}

	return nil
}

// FindExpiredReservations returns RESERVED tickets created before olderThan.
func (r BookingsRepository) FindExpiredReservations(ctx context.Context, olderThan time.Time, limit int) ([]entity.Ticket, error) {
	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, entity.TicketStatusReserved, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("could not find expired reservations: %w", err)
	}

	return tickets, nil
}

// ActiveSeatHolds lists seats owned by tickets that still hold them.
func (r BookingsRepository) ActiveSeatHolds(ctx context.Context) ([]entity.SeatReservation, error) {
	var tickets []entity.Ticket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status IN ($1, $2, $3)
	`, entity.TicketStatusReserved, entity.TicketStatusConfirmed, entity.TicketStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("could not list active seat holds: %w", err)
	}

	return lo.Map(tickets, func(t entity.Ticket, _ int) entity.SeatReservation {
		return entity.SeatReservation{Key: t.SeatKey(), TicketID: t.ID, Status: entity.SeatHeld}
	}), nil
}
