package domain

import "time"

type Booking struct {
	ID         int64     `json:"id"`
	TourID     int64     `json:"tour_id"`
	UserID     int64     `json:"user_id"`
	PriceCents int64     `json:"price_cents"`
	Paid       bool      `json:"paid"`
	CreatedAt  time.Time `json:"created_at"`
}
