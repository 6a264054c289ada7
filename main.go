package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"busbooking/app"
	"busbooking/config"
	"busbooking/db"
	"busbooking/pubsub"
	"busbooking/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if config.IsHelp(err) {
		os.Exit(0)
	}
	if err != nil {
		if !config.Reported(err) {
			logrus.WithError(err).Error("failed to load config")
		}
		os.Exit(1)
	}

	log.Init(cfg.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbConn, err := db.Connect(cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to postgres")
	}
	defer dbConn.Close()

	redisClient := pubsub.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure tracing")
	}

	a, err := app.New(cfg, dbConn, redisClient, traceProvider)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create app")
	}

	if err := a.Run(ctx); err != nil {
		logrus.WithError(err).Fatal("app stopped with error")
	}
}
