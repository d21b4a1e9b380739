package cart

import (
	"context"
	"testing"

	"github.com/fjod/go_checkout/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (Repository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	repo := NewMongoRepository(client.Database("testdb"))
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		_ = client.Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func testLine(sku string, qty int32, price string) domain.CartLine {
	return domain.CartLine{
		SKU:         sku,
		ProductName: "product " + sku,
		UnitPrice:   decimal.RequireFromString(price),
		Quantity:    qty,
	}
}

func TestMongoGetCart_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestMongoAddLine_NewCart(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("A", 3, "10.00")))

	cart, err := repo.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", cart.CustomerID)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "A", cart.Lines[0].SKU)
	assert.Equal(t, int32(3), cart.Lines[0].Quantity)
	assert.True(t, cart.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestMongoAddLine_ExistingSKU_IncrementsQuantity(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("A", 2, "10.00")))
	// second add keeps the first price and increments the quantity
	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("A", 5, "99.99")))

	cart, err := repo.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int32(7), cart.Lines[0].Quantity)
	assert.True(t, cart.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestMongoRemoveLine(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("A", 2, "10.00")))
	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("B", 1, "5.00")))

	require.NoError(t, repo.RemoveLine(ctx, "cust-1", "A"))

	cart, err := repo.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "B", cart.Lines[0].SKU)
}

func TestMongoDeleteCart_IdempotentWhenAbsent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.AddLine(ctx, "cust-1", testLine("A", 2, "10.00")))
	require.NoError(t, repo.DeleteCart(ctx, "cust-1"))

	_, err := repo.GetCart(ctx, "cust-1")
	assert.ErrorIs(t, err, domain.ErrCartNotFound)

	// deleting again is a no-op success
	assert.NoError(t, repo.DeleteCart(ctx, "cust-1"))
}
