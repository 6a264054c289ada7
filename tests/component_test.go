package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lithammer/shortuuid/v3"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"busbooking/app"
	"busbooking/config"
	"busbooking/db"
	"busbooking/entity"
	"busbooking/pubsub"
	"busbooking/pubsub/bus"
	"busbooking/tracing"
)

var (
	httpAddress = ":8080"
)

func TestComponent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).Connect.func1"))
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbconn, err := sqlx.Open("postgres", postgresURL)
	require.NoError(t, err)
	defer dbconn.Close()

	redisClient := pubsub.NewRedisClient(redisURL)
	defer redisClient.Close()

	traceProvider, err := tracing.ConfigureTraceProvider("")
	require.NoError(t, err)

	cfg := config.Config{
		HTTPAddr:       httpAddress,
		PostgresURL:    postgresURL,
		RedisAddr:      redisURL,
		SeatGuard:      config.SeatGuardRedis,
		ReservationTTL: 15 * time.Minute,
		SweepInterval:  time.Minute,
		LogLevel:       "info",
	}

	svc, err := app.New(cfg, dbconn, redisClient, traceProvider)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		<-done
		e := syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
		require.NoError(t, e)
	}()

	finished := make(chan struct{})
	go func() {
		assert.NoError(t, svc.Run(ctx))
		close(finished)
	}()

	defer func() {
		close(done)
		<-finished
	}()

	waitForHttpServer(t)

	eventBus, err := bus.NewEventBus(pubsub.NewRedisPublisher(redisClient, watermill.NopLogger{}))
	require.NoError(t, err)

	tripID := time.Now().UnixNano()

	booking := postBooking(t, BookingRequest{
		UserID: 5,
		TripID: tripID,
		Seats: []SeatRequest{
			{SeatID: 1, SeatCode: "A1", Price: 50000},
			{SeatID: 2, SeatCode: "A2", Price: 50000},
		},
	}, http.StatusCreated)
	require.Len(t, booking.Tickets, 2)
	assert.Equal(t, "PENDING", booking.Status)

	// the seat is held until the booking gives it back
	postBooking(t, BookingRequest{
		UserID: 6,
		TripID: tripID,
		Seats:  []SeatRequest{{SeatID: 1, SeatCode: "A1", Price: 50000}},
	}, http.StatusConflict)

	payment := entity.PaymentCompleted_v1{
		Header:    entity.NewEventHeader(),
		BookingID: booking.ID,
		PaymentID: 99,
	}
	// redelivered payment
	for i := 0; i < 2; i++ {
		require.NoError(t, eventBus.Publish(ctx, payment))
	}

	assertBookingEventually(t, booking.ID, func(t *assert.CollectT, b BookingResponse) {
		assert.Equal(t, "CONFIRMED", b.Status)
		assert.EqualValues(t, 99, b.PaymentID)
	})

	a1 := booking.Tickets[0]
	cancellation := entity.TicketCancelled_v1{
		Header:       entity.NewEventHeader(),
		TicketID:     a1.ID,
		PaymentID:    99,
		RefundAmount: 50000,
		RefundReason: "change of plan",
		UserID:       5,
	}
	// redelivered cancellation
	for i := 0; i < 2; i++ {
		require.NoError(t, eventBus.Publish(ctx, cancellation))
	}

	assertBookingEventually(t, booking.ID, func(t *assert.CollectT, b BookingResponse) {
		assert.Equal(t, "CONFIRMED", b.Status)
		assert.Equal(t, 1, b.NumberOfTickets)
		assert.EqualValues(t, 50000, b.TotalPrice)

		ticket, ok := lo.Find(b.Tickets, func(t TicketResponse) bool { return t.ID == a1.ID })
		if assert.True(t, ok) {
			assert.Equal(t, "CANCELLED", ticket.Status)
			assert.EqualValues(t, 50000, ticket.RefundAmount)
		}
	})

	assertSingleRefundInDataLake(t, dbconn, a1.ID)
	assertRefundInHistory(t, booking.ID, a1.ID)

	// the released seat can be booked again
	postBooking(t, BookingRequest{
		UserID: 6,
		TripID: tripID,
		Seats:  []SeatRequest{{SeatID: 1, SeatCode: "A1", Price: 50000}},
	}, http.StatusCreated)
}

func assertSingleRefundInDataLake(t *testing.T, dbconn *sqlx.DB, ticketID int64) {
	dataLake := db.NewDataLake(dbconn)

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			events, err := dataLake.GetEvents(context.Background(), "RefundRequested_v1")
			if !assert.NoError(t, err) {
				return
			}

			refunds := lo.Filter(events, func(e entity.DataLakeEvent, _ int) bool {
				var refund entity.RefundRequested_v1
				if err := json.Unmarshal(e.Payload, &refund); err != nil {
					return false
				}
				return refund.TicketID == ticketID
			})
			if !assert.Len(t, refunds, 1) {
				return
			}

			var refund entity.RefundRequested_v1
			if !assert.NoError(t, json.Unmarshal(refunds[0].Payload, &refund)) {
				return
			}
			assert.EqualValues(t, 50000, refund.Amount)
			assert.EqualValues(t, 99, refund.PaymentID)
			assert.Equal(t, fmt.Sprintf("refund-%d-99", ticketID), refund.Header.IdempotencyKey)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertRefundInHistory(t *testing.T, bookingID, ticketID int64) {
	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			var entries []HistoryEntryResponse
			if !getJSON(t, fmt.Sprintf("http://localhost:8080/bookings/%d/history", bookingID), &entries) {
				return
			}

			refunds := lo.Filter(entries, func(e HistoryEntryResponse, _ int) bool {
				return e.Kind == "refund_requested" && e.TicketID == ticketID
			})
			assert.Len(t, refunds, 1)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

func assertBookingEventually(t *testing.T, bookingID int64, check func(t *assert.CollectT, b BookingResponse)) {
	t.Helper()

	assert.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			var booking BookingResponse
			if !getJSON(t, fmt.Sprintf("http://localhost:8080/bookings/%d", bookingID), &booking) {
				return
			}
			check(t, booking)
		},
		10*time.Second,
		100*time.Millisecond,
	)
}

type BookingRequest struct {
	UserID int64         `json:"userId"`
	TripID int64         `json:"tripId"`
	Seats  []SeatRequest `json:"seats"`
}

type SeatRequest struct {
	SeatID   int64  `json:"seatId"`
	SeatCode string `json:"seatCode"`
	Price    int64  `json:"price"`
}

type BookingResponse struct {
	ID              int64            `json:"id"`
	Status          string           `json:"status"`
	TotalPrice      int64            `json:"totalPrice"`
	NumberOfTickets int              `json:"numberOfTickets"`
	PaymentID       int64            `json:"paymentId"`
	Tickets         []TicketResponse `json:"tickets"`
}

type TicketResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	SeatCode     string `json:"seatCode"`
	RefundAmount int64  `json:"refundAmount"`
}

type HistoryEntryResponse struct {
	TicketID int64  `json:"ticketId"`
	Kind     string `json:"kind"`
	Amount   int64  `json:"amount"`
}

func postBooking(t *testing.T, req BookingRequest, expectedStatus int) BookingResponse {
	t.Helper()

	payload, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		http.MethodPost,
		"http://localhost:8080/bookings",
		bytes.NewBuffer(payload),
	)
	require.NoError(t, err)

	httpReq.Header.Set("Correlation-ID", shortuuid.New())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, expectedStatus, resp.StatusCode)

	var booking BookingResponse
	if expectedStatus == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&booking))
	}
	return booking
}

func getJSON(t *assert.CollectT, url string, target any) bool {
	resp, err := http.Get(url)
	if !assert.NoError(t, err) {
		return false
	}
	defer resp.Body.Close()

	if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
		return false
	}

	return assert.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func waitForHttpServer(t *testing.T) {
	t.Helper()

	require.EventuallyWithT(
		t,
		func(t *assert.CollectT) {
			resp, err := http.Get("http://localhost:8080/health")
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300, "API not ready, http status: %d", resp.StatusCode)
		},
		time.Second*10,
		time.Millisecond*50,
	)
}
