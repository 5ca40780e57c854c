package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const OrderStatusProcessing OrderStatus = "Processing"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	Address   string
	Phone     string
	Role      string
	CreatedAt time.Time
}

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Image       string
	Stock       int
	Category    string
	CreatedAt   time.Time
}

type Order struct {
	ID              int64
	UserID          int64
	Status          OrderStatus
	Total           decimal.Decimal
	PaymentMethod   string
	ShippingAddress string
	ItemCount       int
	Items           []OrderItem
	CreatedAt       time.Time
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal

	// Joined from products for display.
	ProductName  string
	ProductImage string
}

// Subtotal is the snapshot price times the ordered quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Review struct {
	ID        int64
	ProductID int64
	UserID    int64
	Username  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ProductFilter narrows and orders a catalog listing. Zero values mean "no constraint".
type ProductFilter struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Limit    int
	Offset   int
}

const (
	SortName      = "name"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

type OrderPlacedMessage struct {
	OrderID    int64   `json:"order_id"`
	UserID     int64   `json:"user_id"`
	ProductIDs []int64 `json:"product_ids"`
}
