package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

// fakeStore is an in-memory stand-in for the Postgres repositories. It runs
// transactions one at a time and restores its previous state when the
// transaction function fails.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID   int64
	products map[int64]*model.Product
	orders   []model.Order
	items    []model.OrderItem
	reviews  []model.Review
	txCalls  int

	// failures and hooks
	insertItemErr     error
	insertItemAfter   int
	decrementConflict map[int64]bool
	priceOverride     map[int64]decimal.Decimal
	skipExistsCheck   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:          make(map[int64]*model.Product),
		decrementConflict: make(map[int64]bool),
		priceOverride:     make(map[int64]decimal.Decimal),
	}
}

func (s *fakeStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) addProduct(name string, price string, stock int) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &model.Product{
		ID: s.id(), Name: name, Price: decimal.RequireFromString(price), Stock: stock, CreatedAt: time.Now(),
	}
	s.products[p.ID] = p
	return p
}

func (s *fakeStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *fakeStore) setPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id].Price = decimal.RequireFromString(price)
}

func (s *fakeStore) counts() (orders, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders), len(s.items)
}

func (s *fakeStore) itemsFor(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.OrderItem
	for _, it := range s.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out
}

type fakeSnapshot struct {
	products map[int64]model.Product
	orders   int
	items    int
	reviews  int
	nextID   int64
}

func (s *fakeStore) snapshot() fakeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := fakeSnapshot{
		products: make(map[int64]model.Product, len(s.products)),
		orders:   len(s.orders), items: len(s.items), reviews: len(s.reviews), nextID: s.nextID,
	}
	for id, p := range s.products {
		snap.products[id] = *p
	}
	return snap
}

func (s *fakeStore) restore(snap fakeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range snap.products {
		cp := p
		s.products[id] = &cp
	}
	s.orders = s.orders[:snap.orders]
	s.items = s.items[:snap.items]
	s.reviews = s.reviews[:snap.reviews]
	s.nextID = snap.nextID
}

func (s *fakeStore) runInTx(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.txCalls++
	s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// --- ProductRepository ---

type fakeProductRepo struct{ *fakeStore }

func (r fakeProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	p.CreatedAt = time.Now()
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r fakeProductRepo) GetByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r fakeProductRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]model.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (r fakeProductRepo) List(_ context.Context, filter model.ProductFilter) ([]model.Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r fakeProductRepo) Categories(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range r.products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (r fakeProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.products[p.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stock := existing.Stock
	cp := *p
	cp.Stock = stock
	r.products[p.ID] = &cp
	return nil
}

func (r fakeProductRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products), nil
}

// --- OrderRepository ---

type fakeOrderRepo struct{ *fakeStore }

func (r fakeOrderRepo) RunInTx(_ context.Context, fn func(tx repository.OrderTx) error) error {
	return r.runInTx(func() error { return fn(fakeOrderTx{r.fakeStore}) })
}

func (r fakeOrderRepo) GetByID(_ context.Context, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			cp := o
			for _, it := range r.items {
				if it.OrderID == id {
					cp.Items = append(cp.Items, it)
				}
			}
			cp.ItemCount = len(cp.Items)
			return &cp, nil
		}
	}
	return nil, nil
}

func (r fakeOrderRepo) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].UserID == userID {
			out = append(out, r.orders[i])
		}
	}
	return out, nil
}

type fakeOrderTx struct{ *fakeStore }

func (t fakeOrderTx) LockProducts(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int64]model.Product)
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (t fakeOrderTx) CurrentPrice(_ context.Context, id int64) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if price, ok := t.priceOverride[id]; ok {
		return price, nil
	}
	p, ok := t.products[id]
	if !ok {
		return decimal.Zero, errors.New("no rows")
	}
	return p.Price, nil
}

func (t fakeOrderTx) InsertOrder(_ context.Context, order *model.Order) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	order.ID = t.id()
	order.CreatedAt = time.Now()
	t.orders = append(t.orders, *order)
	return nil
}

func (t fakeOrderTx) InsertItem(_ context.Context, item *model.OrderItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.insertItemErr != nil && len(t.items) >= t.insertItemAfter {
		return t.insertItemErr
	}
	item.ID = t.id()
	t.items = append(t.items, *item)
	return nil
}

func (t fakeOrderTx) DecrementStock(_ context.Context, id int64, qty int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.products[id]
	if t.decrementConflict[id] || p.Stock < qty {
		return repository.ErrStockConflict
	}
	p.Stock -= qty
	return nil
}

// --- ReviewRepository ---

type fakeReviewRepo struct{ *fakeStore }

func (r fakeReviewRepo) RunInTx(_ context.Context, fn func(tx repository.ReviewTx) error) error {
	return r.runInTx(func() error { return fn(fakeReviewTx{r.fakeStore}) })
}

func (r fakeReviewRepo) ListByProduct(_ context.Context, productID int64) ([]model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Review
	for i := len(r.reviews) - 1; i >= 0; i-- {
		if r.reviews[i].ProductID == productID {
			out = append(out, r.reviews[i])
		}
	}
	return out, nil
}

func (r fakeReviewRepo) Summary(_ context.Context, productID int64) (float64, int, error) {
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

type fakeReviewTx struct{ *fakeStore }

func (t fakeReviewTx) HasPurchased(_ context.Context, userID, productID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owners := map[int64]int64{}
	for _, o := range t.orders {
		owners[o.ID] = o.UserID
	}
	for _, it := range t.items {
		if it.ProductID == productID && owners[it.OrderID] == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t fakeReviewTx) Exists(_ context.Context, userID, productID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.skipExistsCheck {
		return false, nil
	}
	return t.hasReview(userID, productID), nil
}

func (t fakeReviewTx) hasReview(userID, productID int64) bool {
	for _, rv := range t.reviews {
		if rv.UserID == userID && rv.ProductID == productID {
			return true
		}
	}
	return false
}

func (t fakeReviewTx) Insert(_ context.Context, review *model.Review) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasReview(review.UserID, review.ProductID) {
		return false, nil
	}
	review.ID = t.id()
	review.CreatedAt = time.Now()
	t.reviews = append(t.reviews, *review)
	return true, nil
}

// --- UserRepository ---

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	byID   map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), byID: make(map[int64]*model.User)}
}

func (m *mockUserRepo) add(user *model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	m.users[user.Username] = user
	m.byID[user.ID] = user
	return user
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	if _, ok := m.users[user.Username]; ok {
		m.mu.Unlock()
		return repository.ErrUsernameTaken
	}
	m.mu.Unlock()
	user.CreatedAt = time.Now()
	m.add(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id], nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[username], nil
}
