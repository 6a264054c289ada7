package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBookingRequest_Validate(t *testing.T) {
	valid := NewBookingRequest{
		UserID: 1,
		TripID: 7,
		Seats:  []SeatRequest{{SeatID: 1, SeatCode: "A1", Price: 100}},
	}
	assert.NoError(t, valid.Validate())

	invalid := NewBookingRequest{
		Seats: []SeatRequest{
			{SeatID: 1, SeatCode: "A1", Price: 100},
			{SeatID: 0, SeatCode: "A1", Price: 0},
		},
	}
	err := invalid.Validate()

	var validationErrs ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	fields := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"userId",
		"tripId",
		"seats[1].seatId",
		"seats[1].price",
		"seats[1].seatCode",
	}, fields)
	assert.True(t, IsPermanent(err))
}

func TestValidationErrors_Err(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.Err())
}

func TestTicketCancelled_Validate(t *testing.T) {
	assert.NoError(t, TicketCancelled_v1{TicketID: 1, PaymentID: 99, RefundAmount: 10}.Validate())
	assert.NoError(t, TicketCancelled_v1{TicketID: 1}.Validate())
	assert.Error(t, TicketCancelled_v1{TicketID: 1, RefundAmount: 10}.Validate())
	assert.Error(t, TicketCancelled_v1{TicketID: 1, PaymentID: 1, RefundAmount: -1}.Validate())
	assert.Error(t, TicketCancelled_v1{}.Validate())
}

func TestStatusUpdate_Validate(t *testing.T) {
	assert.NoError(t, StatusUpdate{Status: BookingStatusCancelled}.Validate())
	assert.Error(t, StatusUpdate{Status: "PAID"}.Validate())
}

func TestValidateCancellationReason(t *testing.T) {
	assert.NoError(t, ValidateCancellationReason("customer request"))
	assert.Error(t, ValidateCancellationReason("  "))
}
