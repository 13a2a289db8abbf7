package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trailventures/tours-api/internal/domain"
)

type ReviewsRepo interface {
	// Create inserts a review and recalculates the tour's rating aggregate
	// in the same transaction. Fails on a duplicate (tour, user) pair.
	Create(ctx context.Context, tourID, userID int64, req *domain.CreateReviewRequest) (*domain.Review, error)
	FindByID(ctx context.Context, id int64) (*domain.Review, error)
	Update(ctx context.Context, id int64, req *domain.UpdateReviewRequest) (*domain.Review, error)
	Delete(ctx context.Context, id int64) (bool, error)
	ListByTour(ctx context.Context, tourID int64, limit, offset int) ([]domain.Review, error)
}

type ReviewsRepoImpl struct{ pool *pgxpool.Pool }

func NewReviewsRepo(pool *pgxpool.Pool) *ReviewsRepoImpl { return &ReviewsRepoImpl{pool: pool} }

const reviewCols = `id, tour_id, user_id, rating, review, created_at, updated_at`

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(&rv.ID, &rv.TourID, &rv.UserID, &rv.Rating, &rv.Review, &rv.CreatedAt, &rv.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

// recalcTourRatings recomputes the rating aggregate for a tour from its
// reviews. Runs inside the caller's transaction so a review write and the
// aggregate it implies are committed together. A tour with no reviews falls
// back to the 4.5 default.
func recalcTourRatings(ctx context.Context, tx pgx.Tx, tourID int64) error {
	const q = `
UPDATE tours SET
    ratings_quantity = agg.quantity,
    ratings_average  = COALESCE(agg.average, 4.5),
    updated_at       = now()
FROM (
    SELECT count(*) AS quantity, avg(rating) AS average
    FROM reviews WHERE tour_id = $1
) AS agg
WHERE tours.id = $1`
	_, err := tx.Exec(ctx, q, tourID)
	return err
}

func (r *ReviewsRepoImpl) Create(ctx context.Context, tourID, userID int64, req *domain.CreateReviewRequest) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO reviews (tour_id, user_id, rating, review)
VALUES ($1,$2,$3,$4)
RETURNING ` + reviewCols
	rv, err := scanReview(tx.QueryRow(ctx, q, tourID, userID, req.Rating, req.Review))
	if err != nil {
		return nil, err
	}
	if err := recalcTourRatings(ctx, tx, tourID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rv, nil
}

func (r *ReviewsRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Review, error) {
	const q = `SELECT ` + reviewCols + ` FROM reviews WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanReview(r.pool.QueryRow(ctx, q, id))
}

func (r *ReviewsRepoImpl) Update(ctx context.Context, id int64, req *domain.UpdateReviewRequest) (*domain.Review, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
UPDATE reviews
SET rating=COALESCE($2, rating), review=COALESCE($3, review), updated_at=now()
WHERE id=$1
RETURNING ` + reviewCols
	rv, err := scanReview(tx.QueryRow(ctx, q, id, req.Rating, req.Review))
	if err != nil || rv == nil {
		return rv, err
	}
	if err := recalcTourRatings(ctx, tx, rv.TourID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rv, nil
}

func (r *ReviewsRepoImpl) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var tourID int64
	err = tx.QueryRow(ctx, `DELETE FROM reviews WHERE id=$1 RETURNING tour_id`, id).Scan(&tourID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := recalcTourRatings(ctx, tx, tourID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *ReviewsRepoImpl) ListByTour(ctx context.Context, tourID int64, limit, offset int) ([]domain.Review, error) {
	const q = `SELECT ` + reviewCols + ` FROM reviews WHERE tour_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, tourID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.TourID, &rv.UserID, &rv.Rating, &rv.Review, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
