package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (s *Server) PostBooking(c echo.Context) error {
	var request postBookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	booking, err := s.bookings.Create(c.Request().Context(), request.toEntity())
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusCreated, newBookingResponse(booking))
}

func (s *Server) GetBooking(c echo.Context) error {
	bookingID, err := idParam(c)
	if err != nil {
		return err
	}

	booking, err := s.bookings.Get(c.Request().Context(), bookingID)
	if err != nil {
		return mapError(c, err)
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking))
}

func (s *Server) GetBookingHistory(c echo.Context) error {
	bookingID, err := idParam(c)
	if err != nil {
		return err
	}

	if _, err := s.bookings.Get(c.Request().Context(), bookingID); err != nil {
		return mapError(c, err)
	}

	entries, err := s.history.ForBooking(c.Request().Context(), bookingID)
	if err != nil {
		return mapError(c, err)
	}

	response := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, historyEntryResponse{
			ID:         entry.EntryID,
			TicketID:   entry.TicketID,
			Kind:       entry.Kind,
			FromStatus: entry.FromStatus,
			ToStatus:   entry.ToStatus,
			Amount:     entry.Amount,
			Note:       entry.Note,
			OccurredAt: entry.OccurredAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}
