package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mlevkov/expertbooking/api"
	"github.com/mlevkov/expertbooking/config"
	"github.com/mlevkov/expertbooking/internal/bootstrap"
	"github.com/mlevkov/expertbooking/internal/cache"
	"github.com/mlevkov/expertbooking/internal/domain"
	"github.com/mlevkov/expertbooking/internal/kafka"
	"github.com/mlevkov/expertbooking/internal/processor"
	"github.com/mlevkov/expertbooking/internal/repository"
	"github.com/mlevkov/expertbooking/internal/service/booking"
	"github.com/mlevkov/expertbooking/internal/service/payment"
	"github.com/mlevkov/expertbooking/internal/service/slots"
	"github.com/mlevkov/expertbooking/internal/service/webhook"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.SlotsCacheTTLSec)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	proc := processor.NewClient(cfg.Payment.BaseURL, cfg.Payment.SecretKey)

	bookingRepo := repository.NewBookingRepository(pool)
	slotRepo := repository.NewSlotRepository(pool)
	eventRepo := repository.NewWebhookEventRepository(pool)

	paymentService := payment.NewPaymentService(bookingRepo, proc)
	bookingService := booking.NewBookingService(
		bookingRepo,
		paymentService,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithLeadTime(time.Duration(cfg.Booking.LeadTimeMinutes)*time.Minute),
	)
	slotService := slots.NewSlotService(slotRepo, redisCache)
	webhookService := webhook.NewWebhookService(eventRepo, bookingRepo,
		webhook.WithCache(redisCache),
		webhook.WithNotifier(func(ctx context.Context, eventType string, b *domain.Booking) {
			event := kafka.BookingEvent{
				Type:          eventType,
				Token:         b.Token,
				SlotID:        b.SlotID,
				ExpertID:      b.ExpertID,
				LearnerID:     b.LearnerID,
				Status:        string(b.Status),
				PaymentStatus: string(b.PaymentStatus),
				AmountCents:   b.AmountCents,
				Currency:      b.Currency,
				HeldUntil:     b.HeldUntil,
			}
			if err := producer.Publish(ctx, cfg.Kafka.BookingTopic, b.Token, event); err != nil {
				log.Printf("publish %s event for booking %s: %v", eventType, b.Token, err)
			}
		}))

	handlers := bootstrap.Handlers{
		Bookings: api.NewBookingHandler(bookingService),
		Payments: api.NewPaymentHandler(paymentService),
		Webhooks: api.NewWebhookHandler(webhookService, cfg.Payment.WebhookSecret),
		Slots:    api.NewSlotHandler(slotService),
		Admin:    api.NewAdminHandler(bookingService, cfg.Worker.SweepSecret),
	}

	if err := bootstrap.Run(ctx, cfg, handlers); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
