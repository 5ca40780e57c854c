// Package seed loads the sample grocery catalog into an empty store.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

type item struct {
	name, description, price, image, category string
	stock                                     int
}

var catalog = []item{
	{"Apple", "Fresh red apple", "1.99", "apple.jpg", "Fruits", 50},
	{"Banana", "Ripe yellow banana", "0.99", "banana.jpg", "Fruits", 100},
	{"Milk", "Whole milk, 1 liter", "2.49", "milk.jpg", "Dairy", 30},
	{"Bread", "Freshly baked bread", "1.79", "bread.jpg", "Bakery", 40},
	{"Eggs", "Dozen free-range eggs", "3.49", "eggs.jpg", "Dairy", 25},
	{"Chicken", "Chicken breast, 500g", "5.99", "chicken.jpg", "Meat", 15},
	{"Tomato", "Vine tomatoes, 1kg", "2.29", "tomato.jpg", "Vegetables", 60},
	{"Potato", "Potatoes, 2kg bag", "3.99", "potato.jpg", "Vegetables", 35},
}

// Products inserts the sample catalog when no products exist yet and
// reports how many were created.
func Products(ctx context.Context, repo repository.ProductRepository, log *slog.Logger) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		log.Info("catalog already populated, skipping seed", "products", count)
		return 0, nil
	}

	for _, it := range catalog {
		p := &model.Product{
			Name:        it.name,
			Description: it.description,
			Price:       decimal.RequireFromString(it.price),
			Image:       it.image,
			Stock:       it.stock,
			Category:    it.category,
		}
		if err := repo.Create(ctx, p); err != nil {
			return 0, fmt.Errorf("seed %s: %w", it.name, err)
		}
	}
	log.Info("seeded catalog", "products", len(catalog))
	return len(catalog), nil
}
