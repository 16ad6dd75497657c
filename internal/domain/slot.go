package domain

import "time"

type Slot struct {
	ID         int64
	ExpertID   int64
	StartsAt   time.Time
	EndsAt     time.Time
	Capacity   int
	Remaining  int
	Available  bool
	PriceCents int64
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
