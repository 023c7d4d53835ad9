package main

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"hr-evaluator/domain"
	"hr-evaluator/infrastructure"
	"hr-evaluator/interfaces"
	"hr-evaluator/usecase"
)

func main() {
	cfg, err := infrastructure.LoadConfig()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	log := infrastructure.NewLogger(cfg)

	// Connect DB
	db, err := infrastructure.NewMySQLConnection(cfg.DBDSN, log)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.SeedDemoData {
		if err := infrastructure.SeedDemoData(db, log); err != nil {
			log.Fatal(err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := infrastructure.NewWorkflowMetrics(registry)
	if err != nil {
		log.Fatal(err)
	}

	notifier := buildNotifier(cfg, log)
	if closer, ok := notifier.(io.Closer); ok {
		defer closer.Close()
	}

	routing := infrastructure.NewRoutingRepository(db)
	evaluations, err := usecase.NewEvaluationService(db, routing,
		usecase.WithNotifier(notifier),
		usecase.WithAggregator(cfg.Aggregator),
		usecase.WithRecorder(metrics),
		usecase.WithLogger(log),
	)
	if err != nil {
		log.Fatal(err)
	}

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	interfaces.NewHTTPHandler(router, evaluations, usecase.NewRoutingService(routing, evaluations),
		infrastructure.NewJWTResolver(cfg.JWTSecret))

	log.WithField("addr", cfg.HTTPAddr).Info("server running")
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}

// buildNotifier picks the delivery path: queued through RabbitMQ with an
// in-process consumer, direct chat delivery, or log only.
func buildNotifier(cfg infrastructure.Config, log *logrus.Logger) domain.Notifier {
	var chat *infrastructure.ChatDelivery
	if len(cfg.NotifyURLs) > 0 || len(cfg.AdminNotifyURLs) > 0 {
		var err error
		chat, err = infrastructure.NewChatDelivery(cfg.NotifyURLs, cfg.AdminNotifyURLs, cfg.NotifyTimeout)
		if err != nil {
			log.Fatalf("invalid notification urls: %v", err)
		}
	}
	logOnly := infrastructure.LogNotifier{Log: log}

	if cfg.RabbitMQURL == "" {
		if chat != nil {
			return chat
		}
		return logOnly
	}

	rmq, err := infrastructure.NewRabbitMQ(cfg.RabbitMQURL, cfg.NotificationQueue, log)
	if err != nil {
		log.Fatal(err)
	}
	// Worker consumer delivers queued notifications
	deliver := func(n domain.Notification) error {
		if chat != nil {
			return chat.Deliver(n)
		}
		return logOnly.Notify(context.Background(), n)
	}
	if err := rmq.ConsumeNotifications(deliver); err != nil {
		log.Fatal(err)
	}
	return rmq
}
