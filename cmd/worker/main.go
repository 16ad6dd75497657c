package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mlevkov/expertbooking/config"
	"github.com/mlevkov/expertbooking/internal/cache"
	"github.com/mlevkov/expertbooking/internal/email"
	"github.com/mlevkov/expertbooking/internal/kafka"
	"github.com/mlevkov/expertbooking/internal/processor"
	"github.com/mlevkov/expertbooking/internal/repository"
	"github.com/mlevkov/expertbooking/internal/service/booking"
	"github.com/mlevkov/expertbooking/internal/service/payment"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.SlotsCacheTTLSec)*time.Second)
	proc := processor.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey)

	bookingRepo := repository.NewBookingRepository(pool)
	paymentService := payment.NewPaymentService(bookingRepo, proc)
	bookingService := booking.NewBookingService(
		bookingRepo,
		paymentService,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, emailSender.Send); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.SweepIntervalMinutes) * time.Minute)
	defer sweepTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			cancelled, err := bookingService.SweepExpired(ctx, time.Now())
			if err != nil {
				log.Printf("sweep expired bookings error: %v", err)
				continue
			}
			if cancelled > 0 {
				log.Printf("cancelled %d expired bookings", cancelled)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
