package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mlevkov/expertbooking/api"
	"github.com/mlevkov/expertbooking/config"
)

type Handlers struct {
	Bookings *api.BookingHandler
	Payments *api.PaymentHandler
	Webhooks *api.WebhookHandler
	Slots    *api.SlotHandler
	Admin    *api.AdminHandler
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, h Handlers) error {
	router := gin.Default()

	h.Bookings.Register(router.Group("/bookings"))
	h.Payments.Register(router.Group("/payments"))
	h.Webhooks.Register(router.Group("/webhooks"))
	h.Slots.Register(router.Group("/slots"))
	h.Admin.Register(router.Group("/admin"))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
