package memory

import (
	"context"
	"errors"
	"testing"

	"inventoryledger/internal/domain"
	"inventoryledger/internal/store"
)

func TestListProductsFilter(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	matches, err := s.ListProducts(ctx, domain.ProductFilter{Search: "mouse"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Wireless Mouse" {
		t.Fatalf("expected only Wireless Mouse, got %+v", matches)
	}

	matches, err = s.ListProducts(ctx, domain.ProductFilter{Category: "electronics", MaxPriceCents: 50000})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "4K Monitor" {
		t.Fatalf("expected only 4K Monitor under 500.00, got %+v", matches)
	}
}

func TestUpdateProductNeverTouchesStock(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	product, err := s.GetProductByID(ctx, "prod-cable")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	edited := *product
	edited.Name = "USB-C Cable"
	edited.StockQty = 9999

	saved, err := s.UpdateProduct(ctx, edited)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if saved.StockQty != product.StockQty {
		t.Fatalf("update must preserve stock %d, got %d", product.StockQty, saved.StockQty)
	}
	if saved.Name != "USB-C Cable" {
		t.Fatalf("expected renamed product, got %q", saved.Name)
	}
}

// Shrinking a return hands units back to the sale, so the store must verify
// the stock to re-consume is still on the shelf.
func TestShrinkReturnNeedsStockOnHand(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, domain.Product{Name: "Scarce Part", PriceCents: 100, StockQty: 5})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	sale, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-ada", ProductID: product.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	ret, err := s.CreateReturn(ctx, domain.Return{SaleID: sale.Sale.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("create return failed: %v", err)
	}

	// The restocked units are sold again, leaving nothing to re-consume.
	if _, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-alan", ProductID: product.ID, Quantity: 5}); err != nil {
		t.Fatalf("re-sell failed: %v", err)
	}

	_, err = s.UpdateReturnQuantity(ctx, ret.Return.ID, 1)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock shrinking return with empty shelf, got %v", err)
	}
}

func TestListSalesNewestFirstWithLimit(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	var lastID string
	for i := 0; i < 3; i++ {
		receipt, err := s.CreateSale(ctx, domain.Sale{CustomerID: "cust-ada", ProductID: "prod-cable", Quantity: 1})
		if err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
		lastID = receipt.Sale.ID
	}

	sales, err := s.ListSales(ctx, 2)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected limit 2, got %d", len(sales))
	}
	if sales[0].ID != lastID {
		t.Fatalf("expected newest sale first, got %s", sales[0].ID)
	}
}
