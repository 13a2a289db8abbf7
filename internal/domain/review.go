package domain

import (
	"fmt"
	"strings"
	"time"
)

type Review struct {
	ID        int64     `json:"id"`
	TourID    int64     `json:"tour_id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateReviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type UpdateReviewRequest struct {
	Rating *int    `json:"rating,omitempty"`
	Review *string `json:"review,omitempty"`
}

func (r *CreateReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if strings.TrimSpace(r.Review) == "" {
		return fmt.Errorf("review cannot be empty")
	}
	return nil
}

func (r *UpdateReviewRequest) Validate() error {
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	if r.Review != nil && strings.TrimSpace(*r.Review) == "" {
		return fmt.Errorf("review cannot be empty")
	}
	return nil
}
