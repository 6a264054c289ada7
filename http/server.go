package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"busbooking/entity"
)

type BookingService interface {
	Create(ctx context.Context, request entity.NewBookingRequest) (entity.Booking, error)
	Get(ctx context.Context, bookingID int64) (entity.Booking, error)
	Find(ctx context.Context, filter entity.BookingFilter) ([]entity.Booking, error)
	UpdateStatus(ctx context.Context, bookingID int64, update entity.StatusUpdate) (entity.Booking, error)
	CancelTicket(ctx context.Context, ticketID int64, reason string) (entity.TicketSnapshot, error)
}

type BookingHistory interface {
	ForBooking(ctx context.Context, bookingID int64) ([]entity.BookingHistoryEntry, error)
}

type Server struct {
	addr     string
	e        *echo.Echo
	bookings BookingService
	history  BookingHistory
}

func NewServer(
	addr string,
	bookings BookingService,
	history BookingHistory,
) *Server {
	if bookings == nil {
		panic("missing bookings")
	}
	if history == nil {
		panic("missing history")
	}

	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("bookings"))

	server := &Server{
		addr:     addr,
		e:        e,
		bookings: bookings,
		history:  history,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/bookings", server.PostBooking)
	e.GET("/bookings/:id", server.GetBooking)
	e.GET("/bookings/:id/history", server.GetBookingHistory)

	admin := e.Group("/admin")
	admin.GET("/bookings", server.GetAdminBookings)
	admin.PUT("/bookings/:id/status", server.PutBookingStatus)
	admin.PUT("/tickets/:id/cancel", server.PutTicketCancel)

	return server
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.Background())
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
