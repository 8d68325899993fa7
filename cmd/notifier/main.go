package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/itsstore/go-shop-orders/internal/config"
	kafkax "github.com/itsstore/go-shop-orders/internal/kafka"
	"github.com/itsstore/go-shop-orders/internal/notifier"
	"github.com/itsstore/go-shop-orders/internal/orders"
	"github.com/itsstore/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notifier.Service{
		Redis:       rdb,
		Log:         log,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range []string{orders.TopicOrderPlaced, orders.TopicOrderStatusChanged} {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topic, cfg.NotifierWorkers, log)
		t := topic
		g.Go(func() error {
			log.WithFields(logrus.Fields{
				"group":   cfg.NotifierGroup,
				"topic":   t,
				"workers": cfg.NotifierWorkers,
			}).Info("notifier consumer started")
			return cons.Start(gctx, svc.HandleOrderEvent)
		})
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down consumers...")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("consumer exit")
	}
}
