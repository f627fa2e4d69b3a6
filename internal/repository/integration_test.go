package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/go-storefront-api/internal/model"
)

func createTestUser(t *testing.T, repo UserRepository, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name: "Test User", Email: email, Password: "hashed", Role: "customer",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func createTestProduct(t *testing.T, repo ProductRepository, name string, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		Name: name, Description: "Desc", Category: "gadgets", Brand: "Acme",
		SKU: "sku-" + uuid.NewString()[:8], Price: decimal.NewFromFloat(29.99),
		Stock: stock, LowStockThreshold: 5,
	}
	require.NoError(t, repo.Create(context.Background(), product))
	return product
}

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := createTestUser(t, repo, "Mixed@Example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)
	// The struct is normalized in place, so it agrees with the stored row.
	assert.Equal(t, "mixed@example.com", user.Email)

	// Lookup is case-insensitive; the address is stored lowercased.
	found, err := repo.GetByEmail(ctx, "mixed@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "mixed@example.com", found.Email)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepo_VerificationToken(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := &model.User{
		Name: "Test User", Email: "verify@example.com", Password: "hashed",
		Role: "customer", VerificationToken: "tok-verify",
	}
	require.NoError(t, repo.Create(ctx, user))

	found, err := repo.GetByVerificationToken(ctx, "tok-verify")
	require.NoError(t, err)
	require.NotNil(t, found)

	require.NoError(t, repo.MarkEmailVerified(ctx, found.ID))

	// Consumed tokens stop matching.
	found, err = repo.GetByVerificationToken(ctx, "tok-verify")
	require.NoError(t, err)
	assert.Nil(t, found)

	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.EmailVerified)
}

func TestUserRepo_ResetTokenExpiry(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "reset@example.com")

	require.NoError(t, repo.SetResetToken(ctx, user.ID, "tok-reset", time.Now().Add(10*time.Minute)))

	found, err := repo.GetByResetToken(ctx, "tok-reset")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	// An expired token never matches.
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "tok-reset", time.Now().Add(-time.Minute)))
	found, err = repo.GetByResetToken(ctx, "tok-reset")
	require.NoError(t, err)
	assert.Nil(t, found)

	// UpdatePassword clears whatever token is outstanding.
	require.NoError(t, repo.SetResetToken(ctx, user.ID, "tok-reset", time.Now().Add(10*time.Minute)))
	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "newhash"))
	found, err = repo.GetByResetToken(ctx, "tok-reset")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUserRepo_LoginFailureArmsLockout(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "lockout@example.com")

	for i := 1; i <= 2; i++ {
		attempts, err := repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, attempts)
	}
	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LockedUntil)

	// The third failure crosses the threshold and arms the window.
	attempts, err := repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LockedUntil)
	assert.True(t, reloaded.Locked(time.Now()))

	require.NoError(t, repo.RecordLoginSuccess(ctx, user.ID))
	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.LoginAttempts)
	assert.Nil(t, reloaded.LockedUntil)
	assert.NotNil(t, reloaded.LastLogin)
}

func TestUserRepo_LockExpiryRestartsFailureCounter(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "relock@example.com")

	for i := 0; i < 3; i++ {
		_, err := repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
		require.NoError(t, err)
	}
	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Locked(time.Now()))

	// Expire the window in place.
	_, err = testPool.Exec(ctx,
		`UPDATE users SET locked_until = NOW() - INTERVAL '1 minute' WHERE id = $1`, user.ID)
	require.NoError(t, err)

	// The first failure after expiry restarts the counter and drops the
	// stale window instead of re-arming it.
	attempts, err := repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LockedUntil)

	// Re-locking takes the full threshold again.
	attempts, err = repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.LockedUntil)

	attempts, err = repo.RecordLoginFailure(ctx, user.ID, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	reloaded, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Locked(time.Now()))
}

func TestUserRepo_RefreshTokenRotation(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "rotate@example.com")

	expires := time.Now().Add(time.Hour)
	require.NoError(t, repo.AddRefreshToken(ctx, user.ID, "rt-one", expires))

	ownerID, err := repo.RotateRefreshToken(ctx, "rt-one", "rt-two", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, user.ID, ownerID)

	// The consumed token cannot rotate again.
	ownerID, err = repo.RotateRefreshToken(ctx, "rt-one", "rt-three", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, ownerID)

	// The replacement can.
	ownerID, err = repo.RotateRefreshToken(ctx, "rt-two", "rt-three", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, user.ID, ownerID)
}

func TestUserRepo_ExpiredRefreshTokenCannotRotate(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "expired@example.com")

	require.NoError(t, repo.AddRefreshToken(ctx, user.ID, "rt-stale", time.Now().Add(-time.Minute)))

	ownerID, err := repo.RotateRefreshToken(ctx, "rt-stale", "rt-fresh", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, ownerID)
}

func TestUserRepo_RemoveRefreshTokenIdempotent(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()
	user := createTestUser(t, repo, "logout@example.com")

	require.NoError(t, repo.AddRefreshToken(ctx, user.ID, "rt-gone", time.Now().Add(time.Hour)))
	require.NoError(t, repo.RemoveRefreshToken(ctx, "rt-gone"))
	require.NoError(t, repo.RemoveRefreshToken(ctx, "rt-gone"))
	require.NoError(t, repo.RemoveRefreshToken(ctx, "never-existed"))
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := createTestProduct(t, repo, "Widget", 100)
	assert.NotEqual(t, uuid.Nil, product.ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", found.Name)
	// SKUs are normalized to upper case on insert.
	assert.Equal(t, strings.ToUpper(product.SKU), found.SKU)

	product.Name = "Updated Widget"
	require.NoError(t, repo.Update(ctx, product))
	found, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated Widget", found.Name)

	require.NoError(t, repo.Delete(ctx, product.ID))
	found, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestProductRepo_ListSearch(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	createTestProduct(t, repo, "Red Widget", 10)
	createTestProduct(t, repo, "Blue Widget", 10)
	createTestProduct(t, repo, "Green Gadget", 10)

	products, total, err := repo.List(ctx, 20, 0, "widget", "name", "asc")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, products, 2)
	assert.Equal(t, "Blue Widget", products[0].Name)

	products, total, err = repo.List(ctx, 20, 0, "", "created_at", "desc")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, products, 3)
}

func TestProductRepo_DecrementStockConditional(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()
	product := createTestProduct(t, repo, "Widget", 3)

	tx, err := testPool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.DecrementStock(ctx, tx, product.ID, 2))
	require.NoError(t, tx.Commit(ctx))

	tx, err = testPool.Begin(ctx)
	require.NoError(t, err)
	err = repo.DecrementStock(ctx, tx, product.ID, 2)
	assert.ErrorIs(t, err, ErrStockConflict)
	require.NoError(t, tx.Rollback(ctx))

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Stock)

	tx, err = testPool.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.RestoreStock(ctx, tx, product.ID, 2))
	require.NoError(t, tx.Commit(ctx))
	found, err = repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.Stock)
}

func TestProductRepo_ListCategories(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	createTestProduct(t, repo, "Red Widget", 10)
	createTestProduct(t, repo, "Blue Widget", 10)
	audio := &model.Product{
		Name: "Headphones", Description: "Desc", Category: "audio", Brand: "Acme",
		SKU: "sku-" + uuid.NewString()[:8], Price: decimal.NewFromFloat(59.99), Stock: 10,
		LowStockThreshold: 5,
	}
	require.NoError(t, repo.Create(ctx, audio))

	categories, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"audio", "gadgets"}, categories)
}

func placeTestOrder(t *testing.T, orderRepo OrderRepository, userID uuid.UUID, product *model.Product, quantity int) *model.Order {
	t.Helper()
	itemsPrice := product.Price.Mul(decimal.NewFromInt(int64(quantity)))
	order := &model.Order{
		UserID: userID,
		Items: []model.OrderItem{{
			ProductID: product.ID, Name: product.Name, Price: product.Price, Quantity: quantity,
		}},
		ShippingAddress: model.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
		BillingAddress:  model.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
		Payment:         model.PaymentInfo{Method: "cod", Status: model.PaymentStatusPending},
		ItemsPrice:      itemsPrice,
		TotalPrice:      itemsPrice,
	}
	require.NoError(t, orderRepo.Place(context.Background(), order))
	return order
}

func TestOrderRepo_PlaceAndGet(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)

	order := placeTestOrder(t, orderRepo, user.ID, product, 3)
	assert.NotEqual(t, uuid.Nil, order.ID)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, model.OrderStatusPending, order.Status)

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.OrderNumber, found.OrderNumber)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 3, found.Items[0].Quantity)
	require.Len(t, found.StatusHistory, 1)
	assert.Equal(t, model.OrderStatusPending, found.StatusHistory[0].Status)
	assert.Equal(t, "1 Main St", found.ShippingAddress.Street)

	// Placement reserved the stock.
	reloaded, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Stock)
}

func TestOrderRepo_PlaceAllOrNothing(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	covered := createTestProduct(t, productRepo, "Covered", 5)
	short := createTestProduct(t, productRepo, "Short", 1)

	order := &model.Order{
		UserID: user.ID,
		Items: []model.OrderItem{
			{ProductID: covered.ID, Name: covered.Name, Price: covered.Price, Quantity: 2},
			{ProductID: short.ID, Name: short.Name, Price: short.Price, Quantity: 2},
		},
		ShippingAddress: model.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
		BillingAddress:  model.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "US"},
		Payment:         model.PaymentInfo{Method: "cod", Status: model.PaymentStatusPending},
		ItemsPrice:      decimal.NewFromInt(120),
		TotalPrice:      decimal.NewFromInt(120),
	}
	err := orderRepo.Place(ctx, order)
	assert.ErrorIs(t, err, ErrStockConflict)

	// The rollback left both stocks and the order table untouched.
	for _, p := range []*model.Product{covered, short} {
		reloaded, err := productRepo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Stock, reloaded.Stock)
	}
	orders, err := orderRepo.ListByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderRepo_UniqueOrderNumbers(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 100)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		order := placeTestOrder(t, orderRepo, user.ID, product, 1)
		assert.False(t, seen[order.OrderNumber], "duplicate order number %s", order.OrderNumber)
		seen[order.OrderNumber] = true
	}
}

func TestOrderRepo_UpdateStatus(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)
	order := placeTestOrder(t, orderRepo, user.ID, product, 1)

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, "packing"))
	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusShipped, ""))

	// Skipping a stage or moving backwards is rejected.
	err := orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPending, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusDelivered, ""))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, found.Status)
	require.NotNil(t, found.DeliveredAt)
	assert.Len(t, found.StatusHistory, 4)

	// Delivered is terminal.
	err = orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderRepo_CancelRestoresStock(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)
	order := placeTestOrder(t, orderRepo, user.ID, product, 4)

	reloaded, err := productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 6, reloaded.Stock)

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, "customer request"))

	// The status change and the restock commit together.
	reloaded, err = productRepo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.Stock)

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, found.Status)
	require.NotNil(t, found.CancelledAt)
}

func TestOrderRepo_MarkPaid(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)
	order := placeTestOrder(t, orderRepo, user.ID, product, 1)

	require.NoError(t, orderRepo.MarkPaid(ctx, order.ID, "txn-abc"))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, found.Payment.Status)
	assert.Equal(t, "txn-abc", found.Payment.TransactionID)
	require.NotNil(t, found.PaidAt)

	// A repeated confirmation hits the payment_status guard.
	err = orderRepo.MarkPaid(ctx, order.ID, "txn-other")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	found, err = orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "txn-abc", found.Payment.TransactionID)
}

func TestOrderRepo_Delete(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	orderRepo := NewOrderRepository(testPool, productRepo)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "buyer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)
	order := placeTestOrder(t, orderRepo, user.ID, product, 1)

	require.NoError(t, orderRepo.Delete(ctx, order.ID))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Items and history go with the order.
	var itemCount int
	require.NoError(t, testPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&itemCount))
	assert.Equal(t, 0, itemCount)

	err = orderRepo.Delete(ctx, order.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestReviewRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	userRepo := NewUserRepository(testPool)
	productRepo := NewProductRepository(testPool)
	reviewRepo := NewReviewRepository(testPool)
	ctx := context.Background()

	user := createTestUser(t, userRepo, "reviewer@example.com")
	product := createTestProduct(t, productRepo, "Widget", 10)

	review := &model.Review{
		UserID: user.ID, ProductID: product.ID, Rating: 5,
		Title: "Great", Comment: "Does what it says", Status: model.ReviewStatusPending,
	}
	require.NoError(t, reviewRepo.Create(ctx, review))

	dup, err := reviewRepo.GetByUserAndProduct(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, review.ID, dup.ID)

	// Pending reviews are invisible publicly.
	approved, err := reviewRepo.ListApprovedByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, approved)

	require.NoError(t, reviewRepo.SetStatus(ctx, review.ID, model.ReviewStatusApproved))
	approved, err = reviewRepo.ListApprovedByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, approved, 1)

	require.NoError(t, reviewRepo.Delete(ctx, review.ID))
	err = reviewRepo.Delete(ctx, review.ID)
	assert.Error(t, err)
}
