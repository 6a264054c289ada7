package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busbooking/entity"
)

type bookingServiceMock struct {
	createErr error
	err       error

	lastFilter entity.BookingFilter
	lastUpdate entity.StatusUpdate
}

func (m *bookingServiceMock) Create(_ context.Context, request entity.NewBookingRequest) (entity.Booking, error) {
	if m.createErr != nil {
		return entity.Booking{}, m.createErr
	}
	if err := request.Validate(); err != nil {
		return entity.Booking{}, err
	}
	return entity.Booking{
		ID:              1,
		Status:          entity.BookingStatusPending,
		UserID:          request.UserID,
		TripID:          request.TripID,
		NumberOfTickets: len(request.Seats),
		Tickets: []entity.Ticket{
			{ID: 10, SeatCode: request.Seats[0].SeatCode, Status: entity.TicketStatusReserved},
		},
	}, nil
}

func (m *bookingServiceMock) Get(_ context.Context, bookingID int64) (entity.Booking, error) {
	if m.err != nil {
		return entity.Booking{}, m.err
	}
	return entity.Booking{ID: bookingID, Status: entity.BookingStatusConfirmed}, nil
}

func (m *bookingServiceMock) Find(_ context.Context, filter entity.BookingFilter) ([]entity.Booking, error) {
	m.lastFilter = filter
	return []entity.Booking{{ID: 1}, {ID: 2}}, nil
}

func (m *bookingServiceMock) UpdateStatus(_ context.Context, bookingID int64, update entity.StatusUpdate) (entity.Booking, error) {
	m.lastUpdate = update
	if m.err != nil {
		return entity.Booking{}, m.err
	}
	return entity.Booking{ID: bookingID, Status: update.Status, AdminNote: update.AdminNote}, nil
}

func (m *bookingServiceMock) CancelTicket(_ context.Context, ticketID int64, reason string) (entity.TicketSnapshot, error) {
	if m.err != nil {
		return entity.TicketSnapshot{}, m.err
	}
	cancelledAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return entity.TicketSnapshot{
		ID:                 ticketID,
		Status:             entity.TicketStatusCancelled,
		Price:              50000,
		SeatCode:           "A1",
		SeatID:             1,
		BookingID:          1,
		TripID:             7,
		CancellationReason: reason,
		CancelledAt:        &cancelledAt,
	}, nil
}

type historyMock struct{}

func (historyMock) ForBooking(_ context.Context, bookingID int64) ([]entity.BookingHistoryEntry, error) {
	return []entity.BookingHistoryEntry{
		{EntryID: "e1", BookingID: bookingID, Kind: entity.HistoryBookingCreated, ToStatus: "PENDING"},
	}, nil
}

func do(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	return rec
}

func TestPostBooking(t *testing.T) {
	body := `{"userId": 5, "tripId": 7, "seats": [{"seatId": 1, "seatCode": "A1", "price": 50000}]}`

	t.Run("created", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{}, historyMock{})

		rec := do(t, server, http.MethodPost, "/bookings", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var response map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.EqualValues(t, 1, response["id"])
		assert.EqualValues(t, 7, response["tripId"])
		assert.Equal(t, "PENDING", response["status"])
		assert.Len(t, response["tickets"], 1)
	})

	t.Run("seat taken", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{
			createErr: &entity.BookingError{Reason: "seat A1 of trip 7 is already held", Err: entity.ErrSeatAlreadyHeld},
		}, historyMock{})

		rec := do(t, server, http.MethodPost, "/bookings", body)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already held")
	})

	t.Run("invalid", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{}, historyMock{})

		rec := do(t, server, http.MethodPost, "/bookings", `{"tripId": 7, "seats": []}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var response errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		var fields []string
		for _, f := range response.Fields {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"userId", "seats"}, fields)
	})
}

func TestGetBooking(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		rec := do(t, NewServer(":0", &bookingServiceMock{}, historyMock{}), http.MethodGet, "/bookings/3", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{err: fmt.Errorf("booking 3: %w", entity.ErrNotFound)}, historyMock{})
		rec := do(t, server, http.MethodGet, "/bookings/3", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := do(t, NewServer(":0", &bookingServiceMock{}, historyMock{}), http.MethodGet, "/bookings/abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history", func(t *testing.T) {
		rec := do(t, NewServer(":0", &bookingServiceMock{}, historyMock{}), http.MethodGet, "/bookings/3/history", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"kind":"booking_created"`)
	})

	t.Run("history of unknown booking", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{err: fmt.Errorf("booking 3: %w", entity.ErrNotFound)}, historyMock{})
		rec := do(t, server, http.MethodGet, "/bookings/3/history", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetAdminBookings(t *testing.T) {
	service := &bookingServiceMock{}
	server := NewServer(":0", service, historyMock{})

	rec := do(t, server, http.MethodGet, "/admin/bookings?status=CONFIRMED&trip_id=7&user_id=5&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, entity.BookingFilter{
		Status: entity.BookingStatusConfirmed,
		UserID: 5,
		TripID: 7,
		Limit:  10,
	}, service.lastFilter)

	rec = do(t, server, http.MethodGet, "/admin/bookings?trip_id=seven", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutBookingStatus(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		service := &bookingServiceMock{}
		server := NewServer(":0", service, historyMock{})

		rec := do(t, server, http.MethodPut, "/admin/bookings/1/status", `{"status": "CANCELLED", "adminNote": "bus broke down"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, entity.StatusUpdate{Status: entity.BookingStatusCancelled, AdminNote: "bus broke down"}, service.lastUpdate)
	})

	t.Run("illegal transition", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{
			err: &entity.BookingError{BookingID: 1, Current: "CANCELLED", Requested: "CONFIRMED", Err: entity.ErrIllegalTransition},
		}, historyMock{})

		rec := do(t, server, http.MethodPut, "/admin/bookings/1/status", `{"status": "CONFIRMED"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "CANCELLED -> CONFIRMED")
	})

	t.Run("unknown booking", func(t *testing.T) {
		server := NewServer(":0", &bookingServiceMock{
			err: &entity.BookingError{BookingID: 1, Err: entity.ErrUnknownBooking},
		}, historyMock{})

		rec := do(t, server, http.MethodPut, "/admin/bookings/1/status", `{"status": "CONFIRMED"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPutTicketCancel(t *testing.T) {
	server := NewServer(":0", &bookingServiceMock{}, historyMock{})

	rec := do(t, server, http.MethodPut, "/admin/tickets/100/cancel", `{"cancellationReason": "passenger request"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	for _, key := range []string{
		"id", "status", "price", "seatCode", "seatId", "bookingId", "tripId",
		"cancellationReason", "cancelledAt", "createdAt", "updatedAt",
	} {
		assert.Contains(t, snapshot, key)
	}
	assert.Equal(t, "CANCELLED", snapshot["status"])
	assert.Equal(t, "passenger request", snapshot["cancellationReason"])
}
