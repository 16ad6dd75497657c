package email

import (
	"context"
	"fmt"

	"github.com/mlevkov/expertbooking/internal/kafka"
)

// Sender delivers booking notifications. The transport is a stub; the
// worker wires it to the notifications topic.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	fmt.Printf("notify learner %d and expert %d: booking %s is now %s (%s)\n",
		event.LearnerID, event.ExpertID, event.Token, event.Status, event.Type)
	return nil
}
