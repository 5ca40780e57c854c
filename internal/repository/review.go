package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/grocer/internal/model"
)

// ReviewTx holds the purchase check and the guarded insert of one review submission.
type ReviewTx interface {
	HasPurchased(ctx context.Context, userID, productID int64) (bool, error)
	Exists(ctx context.Context, userID, productID int64) (bool, error)
	// Insert reports false when a review for the (user, product) pair already exists.
	Insert(ctx context.Context, review *model.Review) (bool, error)
}

type ReviewRepository interface {
	RunInTx(ctx context.Context, fn func(tx ReviewTx) error) error
	ListByProduct(ctx context.Context, productID int64) ([]model.Review, error)
	// Summary returns the average rating and the number of reviews for a product.
	Summary(ctx context.Context, productID int64) (float64, int, error)
}

type pgReviewRepo struct{ pool *pgxpool.Pool }

func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &pgReviewRepo{pool: pool}
}

func (r *pgReviewRepo) RunInTx(ctx context.Context, fn func(tx ReviewTx) error) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgReviewTx{tx: tx})
	})
}

type pgReviewTx struct{ tx pgx.Tx }

func (t *pgReviewTx) HasPurchased(ctx context.Context, userID, productID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM order_items oi JOIN orders o ON o.id = oi.order_id
			WHERE o.user_id = $1 AND oi.product_id = $2
		)`, userID, productID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return ok, nil
}

func (t *pgReviewTx) Exists(ctx context.Context, userID, productID int64) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE user_id = $1 AND product_id = $2)`,
		userID, productID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check review: %w", err)
	}
	return ok, nil
}

func (t *pgReviewTx) Insert(ctx context.Context, review *model.Review) (bool, error) {
	rows, err := t.tx.Query(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, product_id) DO NOTHING
		 RETURNING id, created_at`,
		review.ProductID, review.UserID, review.Rating, review.Comment,
	)
	if err != nil {
		return false, fmt.Errorf("insert review: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(&review.ID, &review.CreatedAt); err != nil {
		return false, fmt.Errorf("scan review: %w", err)
	}
	return true, nil
}

func (r *pgReviewRepo) ListByProduct(ctx context.Context, productID int64) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.product_id, r.user_id, u.username, r.rating, r.comment, r.created_at
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.product_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Username,
			&rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

func (r *pgReviewRepo) Summary(ctx context.Context, productID int64) (float64, int, error) {
	var avg float64
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM reviews WHERE product_id = $1`, productID,
	).Scan(&avg, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("review summary: %w", err)
	}
	return avg, n, nil
}
