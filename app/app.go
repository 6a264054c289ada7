package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"busbooking/booking"
	"busbooking/config"
	dbLib "busbooking/db"
	"busbooking/entity"
	"busbooking/http"
	migrations "busbooking/migration"
	"busbooking/pubsub"
	"busbooking/pubsub/bus"
	"busbooking/pubsub/command"
	"busbooking/pubsub/event"
	"busbooking/pubsub/outbox"
	"busbooking/pubsub/read_models_handlers"
	"busbooking/seats"
)

type seatGuard interface {
	booking.SeatGuard
	Load(ctx context.Context, holds []entity.SeatReservation) error
}

// seatPruner is implemented by guards that keep released seats in memory.
type seatPruner interface {
	Prune(ctx context.Context, releasedBefore time.Time) int
}

type App struct {
	db               *sqlx.DB
	watermillLogger  watermill.LoggerAdapter
	watermillRouter  *message.Router
	forwarder        *forwarder.Forwarder
	httpServer       *http.Server
	sweeper          booking.Sweeper
	seats            seatGuard
	seatRetention    time.Duration
	pruneInterval    time.Duration
	bookingsRepo     dbLib.BookingsRepository
	dataLake         dbLib.DataLake
	historyReadModel read_models_handlers.BookingHistoryReadModel
	traceProvider    *tracesdk.TracerProvider
}

func New(
	cfg config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	traceProvider *tracesdk.TracerProvider,
) (App, error) {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		return App{}, fmt.Errorf("failed to create command bus: %w", err)
	}

	var guard seatGuard
	switch cfg.SeatGuard {
	case config.SeatGuardMemory:
		guard = seats.NewLocalGuard()
	default:
		guard = seats.NewRedisGuard(redisClient)
	}

	bookingsRepo := dbLib.NewBookingsRepository(db)
	dataLake := dbLib.NewDataLake(db)
	history := dbLib.NewBookingHistory(db)

	bookingService := booking.NewService(bookingsRepo, guard)
	reconciler := booking.NewReconciler(bookingsRepo, guard)
	sweeper := booking.NewSweeper(bookingsRepo, commandBus, cfg.ReservationTTL, cfg.SweepInterval)

	historyReadModel := read_models_handlers.NewBookingHistoryReadModel(history)
	eventsHandler := event.NewHandler(reconciler)
	commandsHandler := command.NewHandler(reconciler)

	watermillRouter, err := pubsub.NewWatermillRouter(
		pubsub.RouterConfig{
			RedisClient:            redisClient,
			RedisPublisher:         redisPublisher,
			EventProcessorConfig:   event.NewProcessorConfig(redisClient, watermillLogger),
			EventHandlers:          append(eventsHandler.Handlers(), historyReadModel.Handlers()...),
			CommandProcessorConfig: command.NewProcessorConfig(redisClient, watermillLogger),
			CommandHandlers:        commandsHandler.Handlers(),
			DataLake:               dataLake,
		},
		watermillLogger,
	)
	if err != nil {
		return App{}, fmt.Errorf("failed to create watermill router: %w", err)
	}

	fwd, err := outbox.NewForwarder(
		outbox.NewPostgresSubscriber(db.DB, watermillLogger),
		redisPublisher,
		watermillLogger,
	)
	if err != nil {
		return App{}, err
	}

	httpServer := http.NewServer(cfg.HTTPAddr, bookingService, history)

	return App{
		db:               db,
		watermillLogger:  watermillLogger,
		watermillRouter:  watermillRouter,
		forwarder:        fwd,
		httpServer:       httpServer,
		sweeper:          sweeper,
		seats:            guard,
		seatRetention:    cfg.ReservationTTL,
		pruneInterval:    cfg.SweepInterval,
		bookingsRepo:     bookingsRepo,
		dataLake:         dataLake,
		historyReadModel: historyReadModel,
		traceProvider:    traceProvider,
	}, nil
}

func (a App) Run(ctx context.Context) error {
	if err := dbLib.InitializeDatabaseSchema(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	if err := outbox.InitializeSchema(a.db.DB, a.watermillLogger); err != nil {
		return err
	}

	if err := a.restoreSeatHolds(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := migrations.RebuildBookingHistory(ctx, a.dataLake, a.historyReadModel)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to rebuild booking history")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return a.traceProvider.Shutdown(context.Background())
	})

	g.Go(func() error {
		return a.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return a.forwarder.Run(ctx)
	})

	g.Go(func() error {
		<-a.watermillRouter.Running()
		return a.sweeper.Run(ctx)
	})

	if pruner, ok := a.seats.(seatPruner); ok {
		g.Go(func() error {
			a.pruneReleasedSeats(ctx, pruner)
			return nil
		})
	}

	g.Go(func() error {
		// we don't want to start HTTP server before Watermill router (so app won't be healthy before it's ready)
		<-a.watermillRouter.Running()

		return a.httpServer.Run(ctx)
	})

	return g.Wait()
}

// restoreSeatHolds seeds the seat guard with the seats held by active tickets, so holds survive
// restarts of the process (memory guard) or of redis.
func (a App) restoreSeatHolds(ctx context.Context) error {
	holds, err := a.bookingsRepo.ActiveSeatHolds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active seat holds: %w", err)
	}

	if err := a.seats.Load(ctx, holds); err != nil {
		return fmt.Errorf("failed to restore seat holds: %w", err)
	}

	log.FromContext(ctx).WithField("seats", len(holds)).Info("Seat holds restored")

	return nil
}

// pruneReleasedSeats drops seats released longer than a reservation lifetime ago. Their tickets
// are inactive in the database, so a late duplicate release has nothing left to protect.
func (a App) pruneReleasedSeats(ctx context.Context, pruner seatPruner) {
	ticker := time.NewTicker(a.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := pruner.Prune(ctx, time.Now().Add(-a.seatRetention)); pruned > 0 {
				log.FromContext(ctx).WithField("seats", pruned).Debug("Released seats pruned")
			}
		}
	}
}
