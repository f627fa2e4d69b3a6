package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-storefront-api/internal/dto"
)

func TestProductService_Create(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)

	resp, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: "Widget", Description: "A widget", Category: "gadgets", Brand: "Acme",
		SKU: "WID-001", Price: decimal.NewFromFloat(9.99), Stock: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "Widget", resp.Name)
	assert.Equal(t, 100, resp.Stock)
	assert.False(t, resp.LowStock)
}

func TestProductService_Create_LowStockFlag(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)

	// Default threshold is 10, so a stock of 5 is already low.
	resp, err := svc.Create(context.Background(), dto.CreateProductRequest{
		Name: "Widget", Description: "A widget", Category: "gadgets", Brand: "Acme",
		SKU: "WID-001", Price: decimal.NewFromFloat(9.99), Stock: 5,
	})
	require.NoError(t, err)
	assert.True(t, resp.LowStock)
}

func TestProductService_GetByID_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)

	_, err := svc.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Update(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	id := repo.add("Widget", decimal.NewFromInt(10), 50)

	name := "Widget v2"
	price := decimal.NewFromInt(12)
	resp, err := svc.Update(context.Background(), id, dto.UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", resp.Name)
	assert.True(t, resp.Price.Equal(price))
	// Untouched fields survive the patch.
	assert.Equal(t, 50, resp.Stock)
}

func TestProductService_Update_NotFound(t *testing.T) {
	svc := NewProductService(newMockProductRepo(), nil)

	name := "Widget"
	_, err := svc.Update(context.Background(), uuid.New(), dto.UpdateProductRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_Delete(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	id := repo.add("Widget", decimal.NewFromInt(10), 50)

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Empty(t, repo.products)
}

func TestProductService_ListCategories(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)

	for _, p := range []struct{ name, category string }{
		{"Widget", "gadgets"},
		{"Gizmo", "gadgets"},
		{"Headphones", "audio"},
	} {
		_, err := svc.Create(context.Background(), dto.CreateProductRequest{
			Name: p.name, Description: "Desc", Category: p.category, Brand: "Acme",
			SKU: p.name, Price: decimal.NewFromInt(10), Stock: 10,
		})
		require.NoError(t, err)
	}

	// Duplicates collapse and the result is sorted.
	categories, err := svc.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"audio", "gadgets"}, categories)
}

func TestProductService_List(t *testing.T) {
	repo := newMockProductRepo()
	svc := NewProductService(repo, nil)
	repo.add("Widget", decimal.NewFromInt(10), 50)
	repo.add("Gadget", decimal.NewFromInt(20), 30)

	resp, err := svc.List(context.Background(), dto.ListProductsRequest{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Products, 2)
}
