package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/flicky/grocer/internal/metrics"
	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

const (
	minRating = 1
	maxRating = 5
)

type ReviewService struct {
	reviewRepo repository.ReviewRepository
}

func NewReviewService(reviewRepo repository.ReviewRepository) *ReviewService {
	return &ReviewService{reviewRepo: reviewRepo}
}

// AddReview records a review for a product the user has bought. The purchase
// check, the duplicate check and the insert share one transaction, and the
// (user, product) unique constraint settles any race between two submissions.
func (s *ReviewService) AddReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Review, error) {
	review, err := s.addReview(ctx, userID, productID, rating, comment)
	if err != nil {
		metrics.Reviews.WithLabelValues(Kind(err)).Inc()
		return nil, err
	}
	metrics.Reviews.WithLabelValues("ok").Inc()
	return review, nil
}

func (s *ReviewService) addReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Review, error) {
	if rating < minRating || rating > maxRating {
		return nil, ErrInvalidRating
	}
	if userID == 0 {
		return nil, ErrAuthenticationRequired
	}

	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	err := s.reviewRepo.RunInTx(ctx, func(tx repository.ReviewTx) error {
		purchased, err := tx.HasPurchased(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !purchased {
			return ErrPurchaseRequired
		}

		exists, err := tx.Exists(ctx, userID, productID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateReview
		}

		inserted, err := tx.Insert(ctx, review)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrDuplicateReview
		}
		return nil
	})
	if err != nil {
		switch Kind(err) {
		case KindPurchaseRequired, KindDuplicateReview:
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}
	return review, nil
}

// ProductReviews lists reviews newest first with the average rating rounded to one decimal.
func (s *ReviewService) ProductReviews(ctx context.Context, productID int64) ([]model.Review, float64, int, error) {
	reviews, err := s.reviewRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("list reviews: %w", err)
	}
	avg, count, err := s.reviewRepo.Summary(ctx, productID)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("review summary: %w", err)
	}
	return reviews, math.Round(avg*10) / 10, count, nil
}
