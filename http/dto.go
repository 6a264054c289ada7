package http

import (
	"time"

	"busbooking/entity"
)

type postBookingRequest struct {
	UserID    int64                `json:"userId"`
	TripID    int64                `json:"tripId"`
	OrderCode string               `json:"orderCode"`
	Seats     []postBookingSeatDTO `json:"seats"`
}

type postBookingSeatDTO struct {
	SeatID   int64  `json:"seatId"`
	SeatCode string `json:"seatCode"`
	Price    int64  `json:"price"`
}

type putBookingStatusRequest struct {
	Status    entity.BookingStatus `json:"status"`
	AdminNote string               `json:"adminNote"`
}

type putTicketCancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

type bookingResponse struct {
	ID              int64                `json:"id"`
	Status          entity.BookingStatus `json:"status"`
	TotalPrice      int64                `json:"totalPrice"`
	NumberOfTickets int                  `json:"numberOfTickets"`
	UserID          int64                `json:"userId"`
	TripID          int64                `json:"tripId"`
	OrderCode       string               `json:"orderCode"`
	PaymentID       int64                `json:"paymentId,omitempty"`
	AdminNote       string               `json:"adminNote,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Tickets         []ticketResponse     `json:"tickets"`
}

type ticketResponse struct {
	ID                 int64               `json:"id"`
	Status             entity.TicketStatus `json:"status"`
	Price              int64               `json:"price"`
	SeatID             int64               `json:"seatId"`
	SeatCode           string              `json:"seatCode"`
	PaymentID          int64               `json:"paymentId,omitempty"`
	CancellationReason string              `json:"cancellationReason,omitempty"`
	RefundAmount       int64               `json:"refundAmount,omitempty"`
	CancelledAt        *time.Time          `json:"cancelledAt,omitempty"`
}

type historyEntryResponse struct {
	ID         string             `json:"id"`
	TicketID   int64              `json:"ticketId,omitempty"`
	Kind       entity.HistoryKind `json:"kind"`
	FromStatus string             `json:"fromStatus,omitempty"`
	ToStatus   string             `json:"toStatus,omitempty"`
	Amount     int64              `json:"amount,omitempty"`
	Note       string             `json:"note,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

func (r postBookingRequest) toEntity() entity.NewBookingRequest {
	request := entity.NewBookingRequest{
		UserID:    r.UserID,
		TripID:    r.TripID,
		OrderCode: r.OrderCode,
	}
	for _, seat := range r.Seats {
		request.Seats = append(request.Seats, entity.SeatRequest{
			SeatID:   seat.SeatID,
			SeatCode: seat.SeatCode,
			Price:    seat.Price,
		})
	}
	return request
}

func newBookingResponse(b entity.Booking) bookingResponse {
	response := bookingResponse{
		ID:              b.ID,
		Status:          b.Status,
		TotalPrice:      b.TotalPrice,
		NumberOfTickets: b.NumberOfTickets,
		UserID:          b.UserID,
		TripID:          b.TripID,
		OrderCode:       b.OrderCode,
		PaymentID:       b.PaymentID,
		AdminNote:       b.AdminNote,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		Tickets:         make([]ticketResponse, 0, len(b.Tickets)),
	}
	for _, t := range b.Tickets {
		response.Tickets = append(response.Tickets, ticketResponse{
			ID:                 t.ID,
			Status:             t.Status,
			Price:              t.Price,
			SeatID:             t.SeatID,
			SeatCode:           t.SeatCode,
			PaymentID:          t.PaymentID,
			CancellationReason: t.CancellationReason,
			RefundAmount:       t.RefundAmount,
			CancelledAt:        t.CancelledAt,
		})
	}
	return response
}
