package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/itsstore/go-shop-orders/internal/catalog"
	"github.com/itsstore/go-shop-orders/internal/config"
	"github.com/itsstore/go-shop-orders/internal/httpx"
	kafkax "github.com/itsstore/go-shop-orders/internal/kafka"
	"github.com/itsstore/go-shop-orders/internal/orders"
	"github.com/itsstore/go-shop-orders/internal/postgres"
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

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	placed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024, log)
	placed.Start(ctx)
	statusChanged := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	statusChanged.Start(ctx)

	products := &catalog.Repo{DB: db}
	svc := &orders.Service{
		Store:         &orders.Repo{DB: db},
		Sequences:     &orders.SequenceRepo{DB: db},
		Validator:     &orders.Validator{Products: products},
		Placed:        placed,
		StatusChanged: statusChanged,
		ServiceName:   cfg.ServiceName,
	}

	router := httpx.NewRouter(cfg.ServiceName)
	(&httpx.OrdersHandler{Service: svc, Redis: rdb}).Register(router)
	(&httpx.ProductsHandler{Repo: products}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)

	placed.Close() // close inbox -> flush & close writer
	statusChanged.Close()
	cancel() // stop producer loops
	placed.WaitClosed()
	statusChanged.WaitClosed()
}
