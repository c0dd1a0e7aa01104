package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"inventoryledger/internal/cache"
	"inventoryledger/internal/domain"
	"inventoryledger/internal/store"
	"inventoryledger/internal/store/memory"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReportCache{}, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "staff", Role: "staff"})
}

func mustCreateProduct(t *testing.T, svc *Service, name string, priceCents int64, stock int, threshold int) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:         name,
		Category:     "test",
		PriceCents:   priceCents,
		InitialStock: stock,
		MinThreshold: threshold,
	})
	if err != nil {
		t.Fatalf("create product %s failed: %v", name, err)
	}
	return product
}

func TestRecordSaleDecrementsStockAndComputesTotal(t *testing.T) {
	svc := newTestService()

	receipt, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-laptop",
		Quantity:   3,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	if receipt.Sale.TotalCents != 3*99999 {
		t.Fatalf("expected total %d, got %d", 3*99999, receipt.Sale.TotalCents)
	}
	if receipt.RemainingStock != 7 {
		t.Fatalf("expected remaining stock 7, got %d", receipt.RemainingStock)
	}
	if receipt.CustomerName != "Ada Lovelace" {
		t.Fatalf("unexpected customer name %q", receipt.CustomerName)
	}
	if receipt.ProductName != "Laptop" {
		t.Fatalf("unexpected product name %q", receipt.ProductName)
	}

	product, err := svc.GetProduct(context.Background(), "prod-laptop")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQty != 7 {
		t.Fatalf("expected persisted stock 7, got %d", product.StockQty)
	}
}

func TestRecordSaleInsufficientStockLeavesStockUnchanged(t *testing.T) {
	svc := newTestService()

	_, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-laptop",
		Quantity:   11,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "available 10, requested 11") {
		t.Fatalf("expected availability detail in error, got %q", err.Error())
	}

	product, err := svc.GetProduct(context.Background(), "prod-laptop")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product.StockQty != 10 {
		t.Fatalf("failed sale must not touch stock: expected 10, got %d", product.StockQty)
	}

	// The full remaining stock is still sellable after the rejection.
	receipt, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-laptop",
		Quantity:   10,
	})
	if err != nil {
		t.Fatalf("selling exact stock failed: %v", err)
	}
	if receipt.RemainingStock != 0 {
		t.Fatalf("expected stock 0, got %d", receipt.RemainingStock)
	}
	if receipt.StockStatus != domain.StockStatusOut {
		t.Fatalf("expected OUT_OF_STOCK, got %s", receipt.StockStatus)
	}
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	svc := newTestService()

	for _, qty := range []int{0, -3} {
		_, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
			CustomerID: "cust-ada",
			ProductID:  "prod-laptop",
			Quantity:   qty,
		})
		if !errors.Is(err, store.ErrInvalidQuantity) {
			t.Fatalf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}

	_, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-missing",
		ProductID:  "prod-laptop",
		Quantity:   1,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}

	_, err = svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-missing",
		Quantity:   1,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestConcurrentSalesDrainStockExactly(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Concurrent Widget", 500, 40, 0)

	const workers = 8
	const perSale = 5

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
				CustomerID: "cust-ada",
				ProductID:  product.ID,
				Quantity:   perSale,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d failed: %v", i, err)
		}
	}

	final, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if final.StockQty != 0 {
		t.Fatalf("expected stock drained to 0, got %d", final.StockQty)
	}
}

func TestReturnsBoundedBySaleQuantity(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Returnable Gadget", 2000, 10, 5)

	sale, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  product.ID,
		Quantity:   7,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if sale.RemainingStock != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", sale.RemainingStock)
	}
	if sale.StockStatus != domain.StockStatusLow {
		t.Fatalf("expected LOW_STOCK at 3 <= threshold 5, got %s", sale.StockStatus)
	}

	ret, err := svc.RecordReturn(staffCtx(), domain.ReturnCreateRequest{
		SaleID:   sale.Sale.ID,
		Quantity: 2,
		Reason:   "damaged",
	})
	if err != nil {
		t.Fatalf("record return failed: %v", err)
	}
	if ret.UpdatedStock != 5 {
		t.Fatalf("expected stock 5 after return, got %d", ret.UpdatedStock)
	}

	// 2 of 7 already returned, so at most 5 more can come back.
	_, err = svc.RecordReturn(staffCtx(), domain.ReturnCreateRequest{
		SaleID:   sale.Sale.ID,
		Quantity: 6,
	})
	if !errors.Is(err, store.ErrReturnExceedsSale) {
		t.Fatalf("expected ErrReturnExceedsSale, got %v", err)
	}
	if !strings.Contains(err.Error(), "maximum returnable: 5") {
		t.Fatalf("expected max returnable detail, got %q", err.Error())
	}

	stock, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if stock.StockQty != 5 {
		t.Fatalf("rejected return must not touch stock: expected 5, got %d", stock.StockQty)
	}
}

func TestEditSaleQuantityAppliesDelta(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Editable Widget", 1500, 10, 2)

	sale, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-alan",
		ProductID:  product.ID,
		Quantity:   4,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	grown, err := svc.EditSaleQuantity(staffCtx(), sale.Sale.ID, domain.SaleEditRequest{Quantity: 7})
	if err != nil {
		t.Fatalf("grow edit failed: %v", err)
	}
	if grown.RemainingStock != 3 {
		t.Fatalf("expected stock 3 after growing to 7, got %d", grown.RemainingStock)
	}
	if grown.Sale.TotalCents != 7*1500 {
		t.Fatalf("expected total recomputed to %d, got %d", 7*1500, grown.Sale.TotalCents)
	}

	shrunk, err := svc.EditSaleQuantity(staffCtx(), sale.Sale.ID, domain.SaleEditRequest{Quantity: 2})
	if err != nil {
		t.Fatalf("shrink edit failed: %v", err)
	}
	if shrunk.RemainingStock != 8 {
		t.Fatalf("expected stock 8 after shrinking to 2, got %d", shrunk.RemainingStock)
	}
	if shrunk.Sale.TotalCents != 2*1500 {
		t.Fatalf("expected total %d, got %d", 2*1500, shrunk.Sale.TotalCents)
	}

	// Growing needs only the delta, not the full new quantity: 2 -> 11 needs 9
	// more units but only 8 remain.
	_, err = svc.EditSaleQuantity(staffCtx(), sale.Sale.ID, domain.SaleEditRequest{Quantity: 11})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock on over-grow, got %v", err)
	}
	if !strings.Contains(err.Error(), "available 8, requested 9") {
		t.Fatalf("expected delta detail in error, got %q", err.Error())
	}

	// A failed edit leaves the sale row untouched.
	current, err := svc.GetSale(context.Background(), sale.Sale.ID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if current.Quantity != 2 || current.TotalCents != 2*1500 {
		t.Fatalf("expected sale unchanged at qty 2, got qty=%d total=%d", current.Quantity, current.TotalCents)
	}
}

func TestEditSaleQuantityCannotDropBelowReturned(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Bounded Widget", 1000, 10, 2)

	sale, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  product.ID,
		Quantity:   5,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.RecordReturn(staffCtx(), domain.ReturnCreateRequest{SaleID: sale.Sale.ID, Quantity: 3}); err != nil {
		t.Fatalf("record return failed: %v", err)
	}

	_, err = svc.EditSaleQuantity(staffCtx(), sale.Sale.ID, domain.SaleEditRequest{Quantity: 2})
	if !errors.Is(err, store.ErrReturnExceedsSale) {
		t.Fatalf("expected ErrReturnExceedsSale when shrinking below returned total, got %v", err)
	}

	// Shrinking down to exactly the returned total is allowed.
	edited, err := svc.EditSaleQuantity(staffCtx(), sale.Sale.ID, domain.SaleEditRequest{Quantity: 3})
	if err != nil {
		t.Fatalf("shrink to returned total failed: %v", err)
	}
	if edited.Sale.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", edited.Sale.Quantity)
	}
}

func TestEditReturnQuantityAppliesDelta(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Delta Gadget", 3000, 10, 2)

	sale, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-alan",
		ProductID:  product.ID,
		Quantity:   6,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	ret, err := svc.RecordReturn(staffCtx(), domain.ReturnCreateRequest{SaleID: sale.Sale.ID, Quantity: 4})
	if err != nil {
		t.Fatalf("record return failed: %v", err)
	}
	if ret.UpdatedStock != 8 {
		t.Fatalf("expected stock 8 after return, got %d", ret.UpdatedStock)
	}

	// Shrinking the return re-consumes the difference from stock.
	shrunk, err := svc.EditReturnQuantity(staffCtx(), ret.Return.ID, domain.ReturnEditRequest{Quantity: 1})
	if err != nil {
		t.Fatalf("shrink return failed: %v", err)
	}
	if shrunk.UpdatedStock != 5 {
		t.Fatalf("expected stock 5 after shrinking return to 1, got %d", shrunk.UpdatedStock)
	}

	_, err = svc.EditReturnQuantity(staffCtx(), ret.Return.ID, domain.ReturnEditRequest{Quantity: 7})
	if !errors.Is(err, store.ErrReturnExceedsSale) {
		t.Fatalf("expected ErrReturnExceedsSale when return exceeds sale, got %v", err)
	}

	grown, err := svc.EditReturnQuantity(staffCtx(), ret.Return.ID, domain.ReturnEditRequest{Quantity: 6})
	if err != nil {
		t.Fatalf("grow return to full sale failed: %v", err)
	}
	if grown.UpdatedStock != 10 {
		t.Fatalf("expected stock back at 10, got %d", grown.UpdatedStock)
	}
}

func TestDeleteProductWithSalesRejected(t *testing.T) {
	svc := newTestService()
	sold := mustCreateProduct(t, svc, "Sold Widget", 700, 5, 1)
	unsold := mustCreateProduct(t, svc, "Unsold Widget", 700, 5, 1)

	if _, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  sold.ID,
		Quantity:   1,
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	err := svc.DeleteProduct(adminCtx(), sold.ID)
	if !errors.Is(err, store.ErrReferenced) {
		t.Fatalf("expected ErrReferenced for sold product, got %v", err)
	}

	if err := svc.DeleteProduct(adminCtx(), unsold.ID); err != nil {
		t.Fatalf("deleting unsold product failed: %v", err)
	}
	if _, err := svc.GetProduct(context.Background(), unsold.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDuplicateProductNameRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:       "laptop",
		PriceCents: 100,
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate name, got %v", err)
	}
}

func TestCustomerEmailValidationAndUniqueness(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateCustomer(context.Background(), domain.CustomerCreateRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "not-an-email",
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for malformed email, got %v", err)
	}

	_, err = svc.CreateCustomer(context.Background(), domain.CustomerCreateRequest{
		FirstName: "Ada Again",
		LastName:  "Lovelace",
		Email:     "ADA@example.com",
	})
	if !errors.Is(err, store.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate email, got %v", err)
	}

	created, err := svc.CreateCustomer(context.Background(), domain.CustomerCreateRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
	})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	if created.FullName() != "Grace Hopper" {
		t.Fatalf("unexpected full name %q", created.FullName())
	}
}

func TestRestockAndLowStockAlerts(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Thin Widget", 900, 2, 5)

	low, err := svc.LowStockProducts(context.Background())
	if err != nil {
		t.Fatalf("low stock listing failed: %v", err)
	}
	found := false
	for _, alert := range low.Alerts {
		if alert.Product.ID == product.ID {
			found = true
			if alert.StockStatus != domain.StockStatusLow {
				t.Fatalf("expected LOW_STOCK alert, got %s", alert.StockStatus)
			}
		}
	}
	if !found {
		t.Fatalf("expected %s in low stock alerts", product.ID)
	}

	restocked, err := svc.RestockProduct(adminCtx(), product.ID, domain.RestockRequest{Quantity: 20})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if restocked.StockQty != 22 {
		t.Fatalf("expected stock 22 after restock, got %d", restocked.StockQty)
	}
	if restocked.StockStatus() != domain.StockStatusIn {
		t.Fatalf("expected IN_STOCK after restock, got %s", restocked.StockStatus())
	}

	_, err = svc.RestockProduct(adminCtx(), product.ID, domain.RestockRequest{Quantity: 0})
	if !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for zero restock, got %v", err)
	}
}

func TestAdminGatesOnProductMutations(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateProduct(staffCtx(), domain.ProductCreateRequest{Name: "Nope", PriceCents: 100})
	if !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for staff create, got %v", err)
	}
	if err := svc.DeleteProduct(staffCtx(), "prod-cable"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for staff delete, got %v", err)
	}
	if _, err := svc.ListAuditLogs(staffCtx(), time.Time{}, time.Time{}, 10); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for staff audit listing, got %v", err)
	}
}

func TestDashboardAggregates(t *testing.T) {
	svc := newTestService()

	if _, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-mouse",
		Quantity:   4,
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.RecordSale(staffCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-alan",
		ProductID:  "prod-cable",
		Quantity:   10,
	}); err != nil {
		t.Fatalf("record sale failed: %v", err)
	}

	report, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}

	wantRevenue := int64(4*2550 + 10*1299)
	if report.Sales.TotalRevenueCents != wantRevenue {
		t.Fatalf("expected revenue %d, got %d", wantRevenue, report.Sales.TotalRevenueCents)
	}
	if report.Sales.TotalSales != 2 {
		t.Fatalf("expected 2 sales, got %d", report.Sales.TotalSales)
	}
	if len(report.Sales.ByDay) != 30 {
		t.Fatalf("expected dense 30-day series, got %d points", len(report.Sales.ByDay))
	}
	today := time.Now().UTC().Format("2006-01-02")
	last := report.Sales.ByDay[len(report.Sales.ByDay)-1]
	if last.Day != today {
		t.Fatalf("expected last point %s, got %s", today, last.Day)
	}
	if last.RevenueCents != wantRevenue {
		t.Fatalf("expected today's revenue %d, got %d", wantRevenue, last.RevenueCents)
	}

	if len(report.Sales.TopProducts) == 0 || report.Sales.TopProducts[0].ProductID != "prod-cable" {
		t.Fatalf("expected prod-cable as top product, got %+v", report.Sales.TopProducts)
	}
	if report.Inventory.InventoryValueCents <= 0 {
		t.Fatalf("expected positive inventory value")
	}
	if report.GeneratedAt == "" {
		t.Fatalf("expected generated_at timestamp")
	}
}

func TestAuditTrailRecordsLedgerActions(t *testing.T) {
	svc := newTestService()

	sale, err := svc.RecordSale(adminCtx(), domain.SaleCreateRequest{
		CustomerID: "cust-ada",
		ProductID:  "prod-monitor",
		Quantity:   2,
	})
	if err != nil {
		t.Fatalf("record sale failed: %v", err)
	}
	if _, err := svc.RecordReturn(adminCtx(), domain.ReturnCreateRequest{SaleID: sale.Sale.ID, Quantity: 1}); err != nil {
		t.Fatalf("record return failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(adminCtx(), time.Time{}, time.Time{}, 50)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}

	actions := make(map[string]bool, len(logs))
	for _, entry := range logs {
		actions[entry.Action] = true
		if entry.ActorUsername != "admin" {
			t.Fatalf("expected actor admin, got %q", entry.ActorUsername)
		}
	}
	if !actions["sale_record"] || !actions["return_record"] {
		t.Fatalf("expected sale_record and return_record audit entries, got %v", actions)
	}
}
