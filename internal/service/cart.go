package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flicky/grocer/internal/cart"
	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

// CartLine is a cart entry priced against the live catalog.
type CartLine struct {
	Product  model.Product
	Quantity int
	Subtotal decimal.Decimal
}

// CartService applies catalog rules to a session cart. Stock is checked
// when items are added but never reserved; checkout validates again.
type CartService struct {
	productRepo repository.ProductRepository
}

func NewCartService(productRepo repository.ProductRepository) *CartService {
	return &CartService{productRepo: productRepo}
}

func (s *CartService) product(ctx context.Context, productID int64) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Add merges quantity into the existing entry for productID.
func (s *CartService) Add(ctx context.Context, c *cart.Cart, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return err
	}

	total := c.Quantity(productID) + quantity
	if total > product.Stock {
		return &StockError{ProductID: product.ID, Name: product.Name, Requested: total, Available: product.Stock}
	}
	c.Set(productID, total)
	return nil
}

// SetQuantity replaces the entry for productID; quantity <= 0 removes it.
func (s *CartService) SetQuantity(ctx context.Context, c *cart.Cart, productID int64, quantity int) error {
	if quantity <= 0 {
		c.Remove(productID)
		return nil
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > product.Stock {
		return &StockError{ProductID: product.ID, Name: product.Name, Requested: quantity, Available: product.Stock}
	}
	c.Set(productID, quantity)
	return nil
}

func (s *CartService) Remove(c *cart.Cart, productID int64) {
	c.Remove(productID)
}

// Items prices every entry at the current catalog price. Entries whose
// product no longer exists are skipped.
func (s *CartService) Items(ctx context.Context, c *cart.Cart) ([]CartLine, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	products, err := s.productRepo.GetByIDs(ctx, c.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("get cart products: %w", err)
	}

	lines := make([]CartLine, 0, c.Len())
	for _, l := range c.Lines() {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, CartLine{
			Product:  p,
			Quantity: l.Quantity,
			Subtotal: p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return lines, nil
}

// Total sums live price times quantity, rounded to cents.
func (s *CartService) Total(ctx context.Context, c *cart.Cart) (decimal.Decimal, error) {
	lines, err := s.Items(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}
	return SumLines(lines), nil
}

// SumLines totals priced cart lines, rounded to cents.
func SumLines(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total.Round(2)
}
