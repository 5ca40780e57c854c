package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

// memDB backs every repository interface with maps guarded by one mutex.
// Transactions hold the mutex for their whole duration and restore stock
// on failure.
type memDB struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*model.User
	products map[int64]*model.Product
	orders   []model.Order
	items    []model.OrderItem
	reviews  []model.Review
}

func newMemDB() *memDB {
	return &memDB{users: map[int64]*model.User{}, products: map[int64]*model.Product{}}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) addProduct(name, price string, stock int) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := &model.Product{ID: db.id(), Name: name, Price: decimal.RequireFromString(price), Stock: stock, Category: "Fruits"}
	db.products[p.ID] = p
	return p.ID
}

func (db *memDB) stock(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].Stock
}

type memProducts struct{ *memDB }

func (r memProducts) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r memProducts) GetByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r memProducts) GetByIDs(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]model.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (r memProducts) List(_ context.Context, _ model.ProductFilter) ([]model.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r memProducts) Categories(_ context.Context) ([]string, error) {
	return []string{"Fruits"}, nil
}

func (r memProducts) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.products[p.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	cp.Stock = existing.Stock
	r.products[p.ID] = &cp
	return nil
}

func (r memProducts) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), nil
}

type memUsers struct{ *memDB }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return repository.ErrUsernameTaken
		}
	}
	u.ID = r.id()
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memOrders struct{ *memDB }

func (r memOrders) RunInTx(_ context.Context, fn func(tx repository.OrderTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stocks := map[int64]int{}
	for id, p := range r.products {
		stocks[id] = p.Stock
	}
	nOrders, nItems := len(r.orders), len(r.items)
	if err := fn(memOrderTx{r.memDB}); err != nil {
		for id, s := range stocks {
			r.products[id].Stock = s
		}
		r.orders, r.items = r.orders[:nOrders], r.items[:nItems]
		return err
	}
	return nil
}

func (r memOrders) GetByID(_ context.Context, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			cp := o
			for _, it := range r.items {
				if it.OrderID == id {
					it.ProductName = r.products[it.ProductID].Name
					cp.Items = append(cp.Items, it)
				}
			}
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memOrders) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			for _, it := range r.items {
				if it.OrderID == o.ID {
					o.ItemCount++
				}
			}
			out = append(out, o)
		}
	}
	return out, nil
}

// memOrderTx runs with memDB.mu already held.
type memOrderTx struct{ *memDB }

func (t memOrderTx) LockProducts(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	out := map[int64]model.Product{}
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (t memOrderTx) CurrentPrice(_ context.Context, id int64) (decimal.Decimal, error) {
	return t.products[id].Price, nil
}

func (t memOrderTx) InsertOrder(_ context.Context, o *model.Order) error {
	o.ID = t.id()
	o.CreatedAt = time.Now()
	t.orders = append(t.orders, *o)
	return nil
}

func (t memOrderTx) InsertItem(_ context.Context, it *model.OrderItem) error {
	it.ID = t.id()
	t.items = append(t.items, *it)
	return nil
}

func (t memOrderTx) DecrementStock(_ context.Context, id int64, qty int) error {
	p := t.products[id]
	if p.Stock < qty {
		return repository.ErrStockConflict
	}
	p.Stock -= qty
	return nil
}

type memReviews struct{ *memDB }

func (r memReviews) RunInTx(_ context.Context, fn func(tx repository.ReviewTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.reviews)
	if err := fn(memReviewTx{r.memDB}); err != nil {
		r.reviews = r.reviews[:n]
		return err
	}
	return nil
}

func (r memReviews) ListByProduct(_ context.Context, productID int64) ([]model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Review
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (r memReviews) Summary(_ context.Context, productID int64) (float64, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum, n := 0, 0
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(n), n, nil
}

type memReviewTx struct{ *memDB }

func (t memReviewTx) HasPurchased(_ context.Context, userID, productID int64) (bool, error) {
	for _, o := range t.orders {
		if o.UserID != userID {
			continue
		}
		for _, it := range t.items {
			if it.OrderID == o.ID && it.ProductID == productID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t memReviewTx) Exists(_ context.Context, userID, productID int64) (bool, error) {
	for _, rv := range t.reviews {
		if rv.UserID == userID && rv.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (t memReviewTx) Insert(ctx context.Context, rv *model.Review) (bool, error) {
	if exists, _ := t.Exists(ctx, rv.UserID, rv.ProductID); exists {
		return false, nil
	}
	rv.ID = t.id()
	rv.CreatedAt = time.Now()
	t.reviews = append(t.reviews, *rv)
	return true, nil
}
