package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailventures/tours-api/internal/domain"
)

type ToursRepo interface {
	Create(ctx context.Context, req *domain.CreateTourRequest) (*domain.Tour, error)
	FindByID(ctx context.Context, id int64) (*domain.Tour, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Tour, error)
	Update(ctx context.Context, id int64, req *domain.UpdateTourRequest) (*domain.Tour, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, opts *ListOptions) ([]domain.Tour, error)
	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error)
}

// TourListColumns is the whitelist for tour list filtering and sorting.
var TourListColumns = map[string]bool{
	"name":             true,
	"difficulty":       true,
	"duration_days":    true,
	"max_group_size":   true,
	"price_cents":      true,
	"ratings_average":  true,
	"ratings_quantity": true,
	"created_at":       true,
}

type ToursRepoImpl struct{ pool *pgxpool.Pool }

func NewToursRepo(pool *pgxpool.Pool) *ToursRepoImpl { return &ToursRepoImpl{pool: pool} }

const tourCols = `id, name, slug, duration_days, max_group_size, difficulty,
price_cents, summary, description, image_cover,
ratings_average, ratings_quantity, start_dates, created_at, updated_at`

func scanTour(row pgx.Row) (*domain.Tour, error) {
	var t domain.Tour
	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.DurationDays, &t.MaxGroupSize, &t.Difficulty,
		&t.PriceCents, &t.Summary, &t.Description, &t.ImageCover,
		&t.RatingsAverage, &t.RatingsQuantity, &t.StartDates, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ToursRepoImpl) Create(ctx context.Context, req *domain.CreateTourRequest) (*domain.Tour, error) {
	const q = `
INSERT INTO tours (name, slug, duration_days, max_group_size, difficulty,
                   price_cents, summary, description, image_cover, start_dates)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING ` + tourCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	starts := req.StartDates
	if starts == nil {
		starts = []time.Time{}
	}
	return scanTour(r.pool.QueryRow(ctx, q,
		req.Name, domain.Slugify(req.Name), req.DurationDays, req.MaxGroupSize,
		req.Difficulty, req.PriceCents, req.Summary, req.Description, req.ImageCover,
		starts,
	))
}

func (r *ToursRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanTour(r.pool.QueryRow(ctx, q, id))
}

func (r *ToursRepoImpl) FindBySlug(ctx context.Context, slug string) (*domain.Tour, error) {
	const q = `SELECT ` + tourCols + ` FROM tours WHERE slug=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanTour(r.pool.QueryRow(ctx, q, slug))
}

func (r *ToursRepoImpl) Update(ctx context.Context, id int64, req *domain.UpdateTourRequest) (*domain.Tour, error) {
	const q = `
UPDATE tours
SET name=COALESCE($2, name),
    slug=COALESCE($3, slug),
    duration_days=COALESCE($4, duration_days),
    max_group_size=COALESCE($5, max_group_size),
    difficulty=COALESCE($6, difficulty),
    price_cents=COALESCE($7, price_cents),
    summary=COALESCE($8, summary),
    description=COALESCE($9, description),
    image_cover=COALESCE($10, image_cover),
    start_dates=COALESCE($11, start_dates),
    updated_at=now()
WHERE id=$1
RETURNING ` + tourCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var slug *string
	if req.Name != nil {
		s := domain.Slugify(*req.Name)
		slug = &s
	}
	return scanTour(r.pool.QueryRow(ctx, q, id,
		req.Name, slug, req.DurationDays, req.MaxGroupSize, req.Difficulty,
		req.PriceCents, req.Summary, req.Description, req.ImageCover,
		req.StartDates,
	))
}

func (r *ToursRepoImpl) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM tours WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *ToursRepoImpl) List(ctx context.Context, opts *ListOptions) ([]domain.Tour, error) {
	q := `SELECT ` + tourCols + ` FROM tours`

	where, args := opts.Where(3)
	if where != "" {
		q += ` WHERE ` + where
	}
	q += ` ORDER BY ` + opts.OrderBy("created_at DESC")
	q += ` LIMIT $1 OFFSET $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, append([]any{opts.Limit, opts.Offset()}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list tours: %w", err)
	}
	defer rows.Close()

	var tours []domain.Tour
	for rows.Next() {
		var t domain.Tour
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Slug, &t.DurationDays, &t.MaxGroupSize, &t.Difficulty,
			&t.PriceCents, &t.Summary, &t.Description, &t.ImageCover,
			&t.RatingsAverage, &t.RatingsQuantity, &t.StartDates, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}
	return tours, rows.Err()
}

// Stats aggregates the well-rated part of the catalog per difficulty.
func (r *ToursRepoImpl) Stats(ctx context.Context) ([]domain.TourStats, error) {
	const q = `
SELECT difficulty,
       COUNT(*)::int,
       SUM(ratings_quantity)::int,
       AVG(ratings_average)::float8,
       AVG(price_cents)::bigint,
       MIN(price_cents),
       MAX(price_cents)
FROM tours
WHERE ratings_average >= 4.5
GROUP BY difficulty
ORDER BY AVG(price_cents)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.TourStats
	for rows.Next() {
		var st domain.TourStats
		if err := rows.Scan(
			&st.Difficulty, &st.TourCount, &st.RatingCount, &st.AvgRating,
			&st.AvgPriceCents, &st.MinPriceCents, &st.MaxPriceCents,
		); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// MonthlyPlan counts departures per month of a year, busiest month first.
func (r *ToursRepoImpl) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlanEntry, error) {
	const q = `
SELECT EXTRACT(MONTH FROM d)::int AS month,
       COUNT(*)::int AS tour_count,
       ARRAY_AGG(name ORDER BY name) AS tours
FROM tours, UNNEST(start_dates) AS d
WHERE d >= make_date($1, 1, 1) AND d < make_date($1 + 1, 1, 1)
GROUP BY 1
ORDER BY tour_count DESC, month`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, year)
	if err != nil {
		return nil, fmt.Errorf("monthly plan: %w", err)
	}
	defer rows.Close()

	var plan []domain.MonthlyPlanEntry
	for rows.Next() {
		var e domain.MonthlyPlanEntry
		if err := rows.Scan(&e.Month, &e.TourCount, &e.Tours); err != nil {
			return nil, err
		}
		plan = append(plan, e)
	}
	return plan, rows.Err()
}
