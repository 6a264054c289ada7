package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"busbooking/entity"
)

// GetAdminBookings lists bookings matching every given query filter.
func (s *Server) GetAdminBookings(c echo.Context) error {
	var filter entity.BookingFilter

	filter.Status = entity.BookingStatus(c.QueryParam("status"))

	for param, target := range map[string]*int64{
		"user_id": &filter.UserID,
		"trip_id": &filter.TripID,
	} {
		value := c.QueryParam(param)
		if value == "" {
			continue
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, param+" must be an integer")
		}
		*target = parsed
	}

	if limit := c.QueryParam("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		filter.Limit = parsed
	}

	bookings, err := s.bookings.Find(c.Request().Context(), filter)
	if err != nil {
		return mapError(c, err)
	}

	response := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, newBookingResponse(b))
	}

	return c.JSON(http.StatusOK, response)
}

func (s *Server) PutBookingStatus(c echo.Context) error {
	bookingID, err := idParam(c)
	if err != nil {
		return err
	}

	var request putBookingStatusRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	booking, err := s.bookings.UpdateStatus(c.Request().Context(), bookingID, entity.StatusUpdate{
		Status:    request.Status,
		AdminNote: request.AdminNote,
	})
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking))
}

func (s *Server) PutTicketCancel(c echo.Context) error {
	ticketID, err := idParam(c)
	if err != nil {
		return err
	}

	var request putTicketCancelRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	snapshot, err := s.bookings.CancelTicket(c.Request().Context(), ticketID, request.CancellationReason)
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, snapshot)
}
