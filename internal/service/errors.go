package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrPurchaseRequired       = errors.New("product must be purchased before it can be reviewed")
	ErrDuplicateReview        = errors.New("product already reviewed")
	ErrTransactionFailed      = errors.New("transaction failed")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrPaymentMethodRequired  = errors.New("payment method is required")
	ErrInvalidQuantity        = errors.New("quantity must be positive")
)

// StockError names the product whose requested quantity exceeds what is on hand.
type StockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, only %d available", name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Error kinds reported to clients and metrics.
const (
	KindInsufficientStock      = "insufficient_stock"
	KindInvalidRating          = "invalid_rating"
	KindPurchaseRequired       = "purchase_required"
	KindDuplicateReview        = "duplicate_review"
	KindTransactionFailed      = "transaction_failed"
	KindAuthenticationRequired = "authentication_required"
	KindValidation             = "validation"
	KindNotFound               = "not_found"
	KindForbidden              = "forbidden"
	KindConflict               = "conflict"
	KindInternal               = "internal"
)

// Kind classifies err into one of the Kind* constants.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInvalidRating):
		return KindInvalidRating
	case errors.Is(err, ErrPurchaseRequired):
		return KindPurchaseRequired
	case errors.Is(err, ErrDuplicateReview):
		return KindDuplicateReview
	case errors.Is(err, ErrAuthenticationRequired), errors.Is(err, ErrInvalidCredentials):
		return KindAuthenticationRequired
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrPaymentMethodRequired), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice):
		return KindValidation
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrOrderAccessDenied):
		return KindForbidden
	case errors.Is(err, ErrUserAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrTransactionFailed):
		return KindTransactionFailed
	default:
		return KindInternal
	}
}
