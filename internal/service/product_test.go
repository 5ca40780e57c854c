package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/grocer/internal/dto"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestProductService_Create(t *testing.T) {
	svc := NewProductService(fakeProductRepo{newFakeStore()}, nil)
	resp, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: " Apple ", Price: decimal.RequireFromString("1.99"), Stock: 50, Category: "Fruits",
	})
	require.NoError(t, err)
	assert.Equal(t, "Apple", resp.Name)
	assert.Equal(t, 50, resp.Stock)
	assert.NotZero(t, resp.ID)
}

func TestProductService_Create_NegativePrice(t *testing.T) {
	svc := NewProductService(fakeProductRepo{newFakeStore()}, nil)
	_, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: "Apple", Price: decimal.RequireFromString("-1"),
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, KindValidation, Kind(err))
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc := NewProductService(fakeProductRepo{newFakeStore()}, nil)
	_, err := svc.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, KindNotFound, Kind(err))
}

func TestProductService_GetByID_Cached(t *testing.T) {
	store := newFakeStore()
	apple := store.addProduct("Apple", "1.99", 50)
	mr, client := newTestRedis(t)
	svc := NewProductService(fakeProductRepo{store}, client)

	resp, err := svc.GetByID(context.Background(), apple.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple", resp.Name)
	assert.True(t, mr.Exists(productCacheKey(apple.ID)))

	// Served from cache until invalidated.
	store.setPrice(apple.ID, "2.49")
	resp, err = svc.GetByID(context.Background(), apple.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.99").Equal(resp.Price))

	svc.InvalidateCache(context.Background(), apple.ID)
	assert.False(t, mr.Exists(productCacheKey(apple.ID)))

	resp, err = svc.GetByID(context.Background(), apple.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.49").Equal(resp.Price))
}

func TestProductService_List(t *testing.T) {
	store := newFakeStore()
	store.addProduct("Apple", "1.99", 50)
	store.addProduct("Chicken", "5.99", 15)
	svc := NewProductService(fakeProductRepo{store}, nil)

	resp, err := svc.List(context.Background(), dto.ListProductsRequest{
		Page: 1, Limit: 20, Category: "all", MaxPrice: "3",
	})
	require.NoError(t, err)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Apple", resp.Products[0].Name)
	assert.Equal(t, 1, resp.Total)
}

func TestProductService_List_InvalidPrice(t *testing.T) {
	svc := NewProductService(fakeProductRepo{newFakeStore()}, nil)
	for _, raw := range []string{"abc", "-2"} {
		_, err := svc.List(context.Background(), dto.ListProductsRequest{Page: 1, Limit: 20, MinPrice: raw})
		assert.ErrorIs(t, err, ErrInvalidPrice, raw)
	}
}

func TestProductService_Categories_Empty(t *testing.T) {
	svc := NewProductService(fakeProductRepo{newFakeStore()}, nil)
	categories, err := svc.Categories(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, categories)
	assert.Empty(t, categories)
}

func TestProductService_Update(t *testing.T) {
	store := newFakeStore()
	apple := store.addProduct("Apple", "1.99", 50)
	mr, client := newTestRedis(t)
	svc := NewProductService(fakeProductRepo{store}, client)

	_, err := svc.GetByID(context.Background(), apple.ID)
	require.NoError(t, err)

	name := "Green Apple"
	price := decimal.RequireFromString("2.19")
	resp, err := svc.Update(context.Background(), apple.ID, dto.UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Green Apple", resp.Name)
	assert.Equal(t, 50, store.stock(apple.ID))
	assert.False(t, mr.Exists(productCacheKey(apple.ID)))

	_, err = svc.Update(context.Background(), 999, dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)
}
