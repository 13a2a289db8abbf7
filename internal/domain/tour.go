package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Tour struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	DurationDays    int         `json:"duration_days"`
	MaxGroupSize    int         `json:"max_group_size"`
	Difficulty      string      `json:"difficulty"`
	PriceCents      int64       `json:"price_cents"`
	Summary         string      `json:"summary"`
	Description     string      `json:"description"`
	ImageCover      string      `json:"image_cover"`
	RatingsAverage  float64     `json:"ratings_average"`
	RatingsQuantity int         `json:"ratings_quantity"`
	StartDates      []time.Time `json:"start_dates"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

var validDifficulties = map[string]bool{
	DifficultyEasy:      true,
	DifficultyMedium:    true,
	DifficultyDifficult: true,
}

type CreateTourRequest struct {
	Name         string      `json:"name"`
	DurationDays int         `json:"duration_days"`
	MaxGroupSize int         `json:"max_group_size"`
	Difficulty   string      `json:"difficulty"`
	PriceCents   int64       `json:"price_cents"`
	Summary      string      `json:"summary"`
	Description  string      `json:"description"`
	ImageCover   string      `json:"image_cover"`
	StartDates   []time.Time `json:"start_dates"`
}

type UpdateTourRequest struct {
	Name         *string     `json:"name,omitempty"`
	DurationDays *int        `json:"duration_days,omitempty"`
	MaxGroupSize *int        `json:"max_group_size,omitempty"`
	Difficulty   *string     `json:"difficulty,omitempty"`
	PriceCents   *int64      `json:"price_cents,omitempty"`
	Summary      *string     `json:"summary,omitempty"`
	Description  *string     `json:"description,omitempty"`
	ImageCover   *string     `json:"image_cover,omitempty"`
	StartDates   []time.Time `json:"start_dates,omitempty"`
}

// TourStats is one aggregate row of the per-difficulty catalog breakdown.
type TourStats struct {
	Difficulty    string  `json:"difficulty"`
	TourCount     int     `json:"tour_count"`
	RatingCount   int     `json:"rating_count"`
	AvgRating     float64 `json:"avg_rating"`
	AvgPriceCents int64   `json:"avg_price_cents"`
	MinPriceCents int64   `json:"min_price_cents"`
	MaxPriceCents int64   `json:"max_price_cents"`
}

// MonthlyPlanEntry counts the tours departing in one month of a year.
type MonthlyPlanEntry struct {
	Month     int      `json:"month"`
	TourCount int      `json:"tour_count"`
	Tours     []string `json:"tours"`
}

func (r *CreateTourRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Summary = strings.TrimSpace(r.Summary)
}

func (r *CreateTourRequest) Validate() error {
	if n := len(r.Name); n < 10 || n > 40 {
		return fmt.Errorf("tour name must be between 10 and 40 characters")
	}
	if r.DurationDays <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if r.MaxGroupSize <= 0 {
		return fmt.Errorf("group size must be positive")
	}
	if !validDifficulties[r.Difficulty] {
		return fmt.Errorf("difficulty must be easy, medium or difficult")
	}
	if r.PriceCents < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if r.Summary == "" {
		return fmt.Errorf("summary is required")
	}
	return nil
}

func (r *UpdateTourRequest) Validate() error {
	if r.Name != nil {
		if n := len(strings.TrimSpace(*r.Name)); n < 10 || n > 40 {
			return fmt.Errorf("tour name must be between 10 and 40 characters")
		}
	}
	if r.DurationDays != nil && *r.DurationDays <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if r.MaxGroupSize != nil && *r.MaxGroupSize <= 0 {
		return fmt.Errorf("group size must be positive")
	}
	if r.Difficulty != nil && !validDifficulties[*r.Difficulty] {
		return fmt.Errorf("difficulty must be easy, medium or difficult")
	}
	if r.PriceCents != nil && *r.PriceCents < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	return nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify builds a URL slug from a tour name.
func Slugify(name string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
