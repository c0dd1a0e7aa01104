package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"inventoryledger/internal/cache"
	"inventoryledger/internal/domain"
	"inventoryledger/internal/store"
	"inventoryledger/internal/xid"
)

// ErrAdminRequired is returned when a mutation needs the admin role and the
// caller does not have it.
var ErrAdminRequired = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const dashboardCacheKey = "reports:dashboard"

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 60 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		reportTTL: reportTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, ErrAdminRequired
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))

	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidArgument)
	}
	if req.PriceCents < 1 || req.InitialStock < 0 || req.MinThreshold < 0 {
		return domain.Product{}, store.ErrInvalidArgument
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:         req.Name,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		StockQty:     req.InitialStock,
		MinThreshold: req.MinThreshold,
		Description:  strings.TrimSpace(req.Description),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.StockQty))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, ErrAdminRequired
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	next := *existing
	if req.Name != nil {
		next.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		next.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.PriceCents != nil {
		next.PriceCents = *req.PriceCents
	}
	if req.MinThreshold != nil {
		next.MinThreshold = *req.MinThreshold
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if next.Name == "" || next.PriceCents < 1 || next.MinThreshold < 0 {
		return domain.Product{}, store.ErrInvalidArgument
	}

	saved, err := s.repo.UpdateProduct(ctx, next)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("name=%s,price=%d,threshold=%d", saved.Name, saved.PriceCents, saved.MinThreshold))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrAdminRequired
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) RestockProduct(ctx context.Context, id string, req domain.RestockRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, ErrAdminRequired
	}
	if req.Quantity < 1 {
		return domain.Product{}, store.ErrInvalidQuantity
	}

	updated, err := s.repo.RestockProduct(ctx, id, req.Quantity)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_restock", "product", id, fmt.Sprintf("qty=%d,note=%s", req.Quantity, req.Note))
	return *updated, nil
}

func (s *Service) LowStockProducts(ctx context.Context) (domain.LowStockResponse, error) {
	products, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	alerts := make([]domain.LowStockAlert, 0, len(products))
	for _, p := range products {
		alerts = append(alerts, domain.LowStockAlert{
			Product:     p,
			StockStatus: p.StockStatus(),
		})
	}

	return domain.LowStockResponse{
		AlertCount: len(alerts),
		Alerts:     alerts,
	}, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.FirstName == "" || req.LastName == "" {
		return domain.Customer{}, fmt.Errorf("%w: first and last name are required", store.ErrInvalidArgument)
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		return domain.Customer{}, fmt.Errorf("%w: invalid email", store.ErrInvalidArgument)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, created.FullName())
	return *created, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	return s.repo.SearchCustomers(ctx, term)
}

// RecordSale commits one sale row and decrements product stock in a single
// atomic repository call. Validation that needs no lock happens here first.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleReceipt, error) {
	if req.Quantity < 1 {
		return domain.SaleReceipt{}, store.ErrInvalidQuantity
	}
	if req.CustomerID == "" || req.ProductID == "" {
		return domain.SaleReceipt{}, fmt.Errorf("%w: customer_id and product_id are required", store.ErrInvalidArgument)
	}

	receipt, err := s.repo.CreateSale(ctx, domain.Sale{
		CustomerID:     req.CustomerID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		UnitPriceCents: req.UnitPriceCents,
	})
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	s.logAudit(ctx, "sale_record", "sale", receipt.Sale.ID, fmt.Sprintf("product=%s,qty=%d,total=%d", receipt.Sale.ProductID, receipt.Sale.Quantity, receipt.Sale.TotalCents))
	if receipt.StockStatus != domain.StockStatusIn {
		log.Printf("[service] WARN: product %s stock %s after sale %s (remaining=%d)", receipt.Sale.ProductID, receipt.StockStatus, receipt.Sale.ID, receipt.RemainingStock)
	}

	return *receipt, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, limit)
}

// EditSaleQuantity applies a delta-based stock adjustment: only the
// difference between the old and new quantity moves, and the sale total is
// recomputed from the unit price captured at sale time.
func (s *Service) EditSaleQuantity(ctx context.Context, saleID string, req domain.SaleEditRequest) (domain.SaleReceipt, error) {
	if req.Quantity < 1 {
		return domain.SaleReceipt{}, store.ErrInvalidQuantity
	}

	receipt, err := s.repo.UpdateSaleQuantity(ctx, saleID, req.Quantity)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	s.logAudit(ctx, "sale_edit_quantity", "sale", saleID, fmt.Sprintf("qty=%d,total=%d", receipt.Sale.Quantity, receipt.Sale.TotalCents))
	return *receipt, nil
}

// RecordReturn restocks returned units. The repository enforces that the
// cumulative returned quantity never exceeds what the sale sold.
func (s *Service) RecordReturn(ctx context.Context, req domain.ReturnCreateRequest) (domain.ReturnReceipt, error) {
	if req.Quantity < 1 {
		return domain.ReturnReceipt{}, store.ErrInvalidQuantity
	}
	if req.SaleID == "" {
		return domain.ReturnReceipt{}, fmt.Errorf("%w: sale_id is required", store.ErrInvalidArgument)
	}

	receipt, err := s.repo.CreateReturn(ctx, domain.Return{
		SaleID:   req.SaleID,
		Quantity: req.Quantity,
		Reason:   strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return domain.ReturnReceipt{}, err
	}

	s.logAudit(ctx, "return_record", "return", receipt.Return.ID, fmt.Sprintf("sale=%s,qty=%d", receipt.Return.SaleID, receipt.Return.Quantity))
	return *receipt, nil
}

func (s *Service) GetReturn(ctx context.Context, id string) (domain.Return, error) {
	ret, err := s.repo.GetReturnByID(ctx, id)
	if err != nil {
		return domain.Return{}, err
	}
	return *ret, nil
}

func (s *Service) ListReturnsForSale(ctx context.Context, saleID string) ([]domain.Return, error) {
	return s.repo.ListReturnsForSale(ctx, saleID)
}

func (s *Service) EditReturnQuantity(ctx context.Context, returnID string, req domain.ReturnEditRequest) (domain.ReturnReceipt, error) {
	if req.Quantity < 1 {
		return domain.ReturnReceipt{}, store.ErrInvalidQuantity
	}

	receipt, err := s.repo.UpdateReturnQuantity(ctx, returnID, req.Quantity)
	if err != nil {
		return domain.ReturnReceipt{}, err
	}

	s.logAudit(ctx, "return_edit_quantity", "return", returnID, fmt.Sprintf("qty=%d", receipt.Return.Quantity))
	return *receipt, nil
}

// Dashboard aggregates inventory and sales KPIs over the trailing 30 days.
// Results are served from the report cache when fresh.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardReport, error) {
	if cached, found, err := s.reports.Get(ctx, dashboardCacheKey); err == nil && found {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: report cache read failed: %v", err)
	}

	inventory, err := s.repo.GetInventoryReport(ctx)
	if err != nil {
		return domain.DashboardReport{}, err
	}

	now := time.Now().UTC()
	to := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	from := to.AddDate(0, 0, -30)
	sales, err := s.repo.GetSalesReport(ctx, from, to)
	if err != nil {
		return domain.DashboardReport{}, err
	}

	report := domain.DashboardReport{
		GeneratedAt: now.Format(time.RFC3339),
		Inventory:   inventory,
		Sales:       sales,
	}

	if err := s.reports.Set(ctx, dashboardCacheKey, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed: %v", err)
	}

	return report, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, ErrAdminRequired
	}

	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
