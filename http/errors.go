package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"busbooking/entity"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Fields []entity.FieldError `json:"fields,omitempty"`
}

// mapError translates rejections into HTTP responses. Anything else is left to the echo error handler.
func mapError(c echo.Context, err error) error {
	var validationErr entity.ValidationErrors
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: validationErr})
	}

	status := 0
	switch {
	case errors.Is(err, entity.ErrSeatAlreadyHeld):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrUnknownBooking), errors.Is(err, entity.ErrUnknownTicket), errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrInvalidRefund):
		status = http.StatusUnprocessableEntity
	}
	if status == 0 {
		return err
	}

	return c.JSON(status, errorResponse{Error: err.Error()})
}
