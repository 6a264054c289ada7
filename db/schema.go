package db

import (
	"github.com/jmoiron/sqlx"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS tickets_ticket_id_seq;

		CREATE TABLE IF NOT EXISTS bookings (
			booking_id BIGSERIAL PRIMARY KEY,
			status VARCHAR(16) NOT NULL,
			total_price BIGINT NOT NULL,
			number_of_tickets INT NOT NULL,
			user_id BIGINT NOT NULL,
			trip_id BIGINT NOT NULL,
			order_code VARCHAR(64) NOT NULL,
			payment_id BIGINT NOT NULL DEFAULT 0,
			admin_note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT bookings_order_code_key UNIQUE (order_code)
		);

		CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id);
		CREATE INDEX IF NOT EXISTS bookings_trip_id_idx ON bookings (trip_id);

		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id BIGINT PRIMARY KEY,
			booking_id BIGINT NOT NULL REFERENCES bookings (booking_id),
			trip_id BIGINT NOT NULL,
			seat_id BIGINT NOT NULL,
			seat_code VARCHAR(16) NOT NULL,
			price BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			payment_id BIGINT NOT NULL DEFAULT 0,
			admin_note TEXT NOT NULL DEFAULT '',
			cancellation_reason TEXT NOT NULL DEFAULT '',
			refund_amount BIGINT NOT NULL DEFAULT 0,
			cancelled_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS tickets_booking_id_idx ON tickets (booking_id);
		CREATE INDEX IF NOT EXISTS tickets_reserved_created_at_idx ON tickets (created_at) WHERE status = 'RESERVED';

		-- a seat of a trip can be held by one active ticket only
		CREATE UNIQUE INDEX IF NOT EXISTS tickets_active_seat_idx
			ON tickets (trip_id, seat_code)
			WHERE status IN ('RESERVED', 'CONFIRMED', 'COMPLETED');

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMP NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS booking_history (
			entry_id VARCHAR(64) PRIMARY KEY,
			booking_id BIGINT NOT NULL,
			ticket_id BIGINT NOT NULL DEFAULT 0,
			kind VARCHAR(32) NOT NULL,
			from_status VARCHAR(16) NOT NULL DEFAULT '',
			to_status VARCHAR(16) NOT NULL DEFAULT '',
			amount BIGINT NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS booking_history_booking_id_idx ON booking_history (booking_id, occurred_at);
	`)

	return err
}
