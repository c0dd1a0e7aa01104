package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"inventoryledger/internal/domain"
	"inventoryledger/internal/store"
	"inventoryledger/internal/xid"
)

// Store is an in-memory Repository used for dev mode and tests. A single
// store-wide mutex stands in for the per-product row lock: it is coarser than
// the postgres implementation but provides the same guarantee that all
// stock-sufficiency checks and the cumulative-return sum happen under the
// same exclusive scope as the eventual stock write.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	customers       map[string]domain.Customer
	salesByID       map[string]domain.Sale
	returnsByID     map[string]domain.Return
	returnIDsBySale map[string][]string
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables, with hardcoded dev defaults and a warning when
// unset. They are never used in production (postgres mode owns its users).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-laptop", Name: "Laptop", Category: "electronics", PriceCents: 99999, StockQty: 10, MinThreshold: 3},
		{ID: "prod-mouse", Name: "Wireless Mouse", Category: "accessories", PriceCents: 2550, StockQty: 50, MinThreshold: 10},
		{ID: "prod-keyboard", Name: "Mechanical Keyboard", Category: "accessories", PriceCents: 7500, StockQty: 30, MinThreshold: 10},
		{ID: "prod-monitor", Name: "4K Monitor", Category: "electronics", PriceCents: 29999, StockQty: 15, MinThreshold: 5},
		{ID: "prod-cable", Name: "USB Cable", Category: "accessories", PriceCents: 1299, StockQty: 100, MinThreshold: 20},
	}
	customers := []domain.Customer{
		{ID: "cust-ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0101"},
		{ID: "cust-alan", FirstName: "Alan", LastName: "Turing", Email: "alan@example.com", Phone: "555-0102"},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		p.CreatedAt = now
		p.UpdatedAt = now
		productMap[p.ID] = p
	}
	customerMap := make(map[string]domain.Customer, len(customers))
	for _, c := range customers {
		c.RegisteredAt = now
		customerMap[c.ID] = c
	}

	return &Store{
		products:        productMap,
		customers:       customerMap,
		salesByID:       make(map[string]domain.Sale),
		returnsByID:     make(map[string]domain.Return),
		returnIDsBySale: make(map[string][]string),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !matchesFilter(p, filter) {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})

	return products, nil
}

func matchesFilter(p domain.Product, filter domain.ProductFilter) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.Category != "" && p.Category != filter.Category {
		return false
	}
	if filter.MinPriceCents > 0 && p.PriceCents < filter.MinPriceCents {
		return false
	}
	if filter.MaxPriceCents > 0 && p.PriceCents > filter.MaxPriceCents {
		return false
	}
	return true
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.PriceCents < 1 || product.StockQty < 0 || product.MinThreshold < 0 {
		return nil, store.ErrInvalidArgument
	}
	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, product.Name) {
			return nil, fmt.Errorf("%w: product name already exists", store.ErrInvalidArgument)
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.PriceCents < 1 || product.MinThreshold < 0 {
		return nil, store.ErrInvalidArgument
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
	}
	for id, other := range s.products {
		if id != product.ID && strings.EqualFold(other.Name, product.Name) {
			return nil, fmt.Errorf("%w: product name already exists", store.ErrInvalidArgument)
		}
	}

	// Stock is never written through UpdateProduct; only ledger operations
	// and RestockProduct mutate it.
	product.StockQty = existing.StockQty
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	for _, sale := range s.salesByID {
		if sale.ProductID == id {
			return fmt.Errorf("%w: product has recorded sales", store.ErrReferenced)
		}
	}

	delete(s.products, id)
	return nil
}

func (s *Store) RestockProduct(_ context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}

	product.StockQty += quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product

	updated := product
	return &updated, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.StockQty <= p.MinThreshold {
			low = append(low, p)
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		if a.StockQty != b.StockQty {
			return a.StockQty - b.StockQty
		}
		return cmpString(a.Name, b.Name)
	})
	return low, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.FirstName == "" || customer.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", store.ErrInvalidArgument)
	}
	if customer.Email != "" {
		for _, existing := range s.customers {
			if existing.Email != "" && strings.EqualFold(existing.Email, customer.Email) {
				return nil, fmt.Errorf("%w: email already exists", store.ErrInvalidArgument)
			}
		}
	}

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		if a.FirstName != b.FirstName {
			return cmpString(a.FirstName, b.FirstName)
		}
		return cmpString(a.LastName, b.LastName)
	})
	return customers, nil
}

func (s *Store) SearchCustomers(_ context.Context, term string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(term))
	matches := make([]domain.Customer, 0, 8)
	for _, c := range s.customers {
		haystack := strings.ToLower(c.FirstName + " " + c.LastName + " " + c.Email)
		if needle == "" || strings.Contains(haystack, needle) {
			matches = append(matches, c)
		}
	}
	slices.SortFunc(matches, func(a, b domain.Customer) int {
		if a.FirstName != b.FirstName {
			return cmpString(a.FirstName, b.FirstName)
		}
		return cmpString(a.LastName, b.LastName)
	})
	return matches, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.SaleReceipt, error) {
	if sale.Quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customers[sale.CustomerID]
	if !exists {
		return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
	}
	product, exists := s.products[sale.ProductID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, sale.ProductID)
	}

	if product.StockQty < sale.Quantity {
		return nil, fmt.Errorf("%w: available %d, requested %d", store.ErrInsufficientStock, product.StockQty, sale.Quantity)
	}

	if sale.UnitPriceCents < 1 {
		sale.UnitPriceCents = product.PriceCents
	}
	sale.TotalCents = int64(sale.Quantity) * sale.UnitPriceCents
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}

	product.StockQty -= sale.Quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	s.salesByID[sale.ID] = sale

	return &domain.SaleReceipt{
		Sale:           sale,
		CustomerName:   customer.FullName(),
		ProductName:    product.Name,
		RemainingStock: product.StockQty,
		StockStatus:    product.StockStatus(),
	}, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
	}
	copySale := sale
	return &copySale, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		sales = append(sales, sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.SoldAt.Equal(b.SoldAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.SoldAt.After(b.SoldAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) UpdateSaleQuantity(_ context.Context, saleID string, quantity int) (*domain.SaleReceipt, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	product, exists := s.products[sale.ProductID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, sale.ProductID)
	}

	delta := quantity - sale.Quantity
	if delta > 0 && product.StockQty < delta {
		return nil, fmt.Errorf("%w: available %d, requested %d", store.ErrInsufficientStock, product.StockQty, delta)
	}
	alreadyReturned := s.sumReturnedLocked(saleID, "")
	if quantity < alreadyReturned {
		return nil, fmt.Errorf("%w: %d already returned against this sale", store.ErrReturnExceedsSale, alreadyReturned)
	}

	product.StockQty -= delta
	product.UpdatedAt = time.Now().UTC()
	sale.Quantity = quantity
	sale.TotalCents = int64(quantity) * sale.UnitPriceCents
	s.products[product.ID] = product
	s.salesByID[saleID] = sale

	customerName := ""
	if customer, ok := s.customers[sale.CustomerID]; ok {
		customerName = customer.FullName()
	}

	return &domain.SaleReceipt{
		Sale:           sale,
		CustomerName:   customerName,
		ProductName:    product.Name,
		RemainingStock: product.StockQty,
		StockStatus:    product.StockStatus(),
	}, nil
}

func (s *Store) CreateReturn(_ context.Context, ret domain.Return) (*domain.ReturnReceipt, error) {
	if ret.Quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[ret.SaleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
	}
	if ret.ProductID != "" && ret.ProductID != sale.ProductID {
		return nil, fmt.Errorf("%w: return product must match the sale product", store.ErrInvalidArgument)
	}
	product, exists := s.products[sale.ProductID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, sale.ProductID)
	}

	alreadyReturned := s.sumReturnedLocked(ret.SaleID, "")
	maxReturnable := sale.Quantity - alreadyReturned
	if ret.Quantity > maxReturnable {
		return nil, fmt.Errorf("%w: maximum returnable: %d", store.ErrReturnExceedsSale, maxReturnable)
	}

	ret.ProductID = sale.ProductID
	if ret.ID == "" {
		ret.ID = xid.New("ret")
	}
	if ret.ReturnedAt.IsZero() {
		ret.ReturnedAt = time.Now().UTC()
	}

	product.StockQty += ret.Quantity
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	s.returnsByID[ret.ID] = ret
	s.returnIDsBySale[ret.SaleID] = append(s.returnIDsBySale[ret.SaleID], ret.ID)

	return &domain.ReturnReceipt{
		Return:       ret,
		ProductName:  product.Name,
		UpdatedStock: product.StockQty,
		StockStatus:  product.StockStatus(),
	}, nil
}

func (s *Store) GetReturnByID(_ context.Context, id string) (*domain.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret, exists := s.returnsByID[id]
	if !exists {
		return nil, fmt.Errorf("%w: return %s", store.ErrNotFound, id)
	}
	copyReturn := ret
	return &copyReturn, nil
}

func (s *Store) ListReturnsForSale(_ context.Context, saleID string) ([]domain.Return, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.salesByID[saleID]; !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}

	ids := s.returnIDsBySale[saleID]
	returns := make([]domain.Return, 0, len(ids))
	for _, id := range ids {
		if ret, ok := s.returnsByID[id]; ok {
			returns = append(returns, ret)
		}
	}
	return returns, nil
}

func (s *Store) UpdateReturnQuantity(_ context.Context, returnID string, quantity int) (*domain.ReturnReceipt, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ret, exists := s.returnsByID[returnID]
	if !exists {
		return nil, fmt.Errorf("%w: return %s", store.ErrNotFound, returnID)
	}
	sale, exists := s.salesByID[ret.SaleID]
	if !exists {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
	}
	product, exists := s.products[ret.ProductID]
	if !exists {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, ret.ProductID)
	}

	returnedByOthers := s.sumReturnedLocked(ret.SaleID, returnID)
	if returnedByOthers+quantity > sale.Quantity {
		return nil, fmt.Errorf("%w: maximum returnable: %d", store.ErrReturnExceedsSale, sale.Quantity-returnedByOthers)
	}

	delta := quantity - ret.Quantity
	if delta < 0 && product.StockQty < -delta {
		return nil, fmt.Errorf("%w: available %d, requested %d", store.ErrInsufficientStock, product.StockQty, -delta)
	}

	product.StockQty += delta
	product.UpdatedAt = time.Now().UTC()
	ret.Quantity = quantity
	s.products[product.ID] = product
	s.returnsByID[returnID] = ret

	return &domain.ReturnReceipt{
		Return:       ret,
		ProductName:  product.Name,
		UpdatedStock: product.StockQty,
		StockStatus:  product.StockStatus(),
	}, nil
}

// sumReturnedLocked totals return quantities recorded against a sale,
// excluding excludeID when re-validating an edit. Callers must hold s.mu.
func (s *Store) sumReturnedLocked(saleID string, excludeID string) int {
	total := 0
	for _, id := range s.returnIDsBySale[saleID] {
		if id == excludeID {
			continue
		}
		if ret, ok := s.returnsByID[id]; ok {
			total += ret.Quantity
		}
	}
	return total
}

func (s *Store) GetInventoryReport(_ context.Context) (domain.InventoryReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.InventoryReport{}
	byCategory := map[string]*domain.CategoryBreakdown{}
	for _, p := range s.products {
		report.InventoryValueCents += int64(p.StockQty) * p.PriceCents
		switch p.StockStatus() {
		case domain.StockStatusOut:
			report.StockCounts.Out++
			report.LowStockCount++
		case domain.StockStatusLow:
			report.StockCounts.Low++
			report.LowStockCount++
		default:
			report.StockCounts.In++
		}

		category := p.Category
		if category == "" {
			category = "uncategorized"
		}
		entry, ok := byCategory[category]
		if !ok {
			entry = &domain.CategoryBreakdown{Category: category}
			byCategory[category] = entry
		}
		entry.Products++
		entry.ValueCents += int64(p.StockQty) * p.PriceCents
	}

	categories := make([]domain.CategoryBreakdown, 0, len(byCategory))
	for _, entry := range byCategory {
		categories = append(categories, *entry)
	}
	slices.SortFunc(categories, func(a, b domain.CategoryBreakdown) int {
		return cmpString(a.Category, b.Category)
	})
	report.Categories = categories

	return report, nil
}

func (s *Store) GetSalesReport(_ context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.SalesReport{
		TotalCustomers: len(s.customers),
		TotalSales:     len(s.salesByID),
		TotalReturns:   len(s.returnsByID),
	}

	type dayAgg struct {
		revenue int64
		qty     int
	}
	type productAgg struct {
		name    string
		qty     int
		revenue int64
	}
	byDay := map[string]*dayAgg{}
	byProduct := map[string]*productAgg{}

	for _, sale := range s.salesByID {
		report.TotalRevenueCents += sale.TotalCents

		if !sale.SoldAt.Before(from) && sale.SoldAt.Before(to) {
			day := sale.SoldAt.UTC().Format("2006-01-02")
			agg, ok := byDay[day]
			if !ok {
				agg = &dayAgg{}
				byDay[day] = agg
			}
			agg.revenue += sale.TotalCents
			agg.qty += sale.Quantity
		}

		entry, ok := byProduct[sale.ProductID]
		if !ok {
			name := sale.ProductID
			if product, found := s.products[sale.ProductID]; found {
				name = product.Name
			}
			entry = &productAgg{name: name}
			byProduct[sale.ProductID] = entry
		}
		entry.qty += sale.Quantity
		entry.revenue += sale.TotalCents
	}

	if report.TotalSales > 0 {
		rate := float64(report.TotalReturns) / float64(report.TotalSales) * 100
		report.ReturnRatePercent = float64(int(rate*100+0.5)) / 100
	}

	// Dense per-day series with zero-filled gaps, oldest first.
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC().Truncate(24 * time.Hour)
	for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
		key := day.Format("2006-01-02")
		point := domain.DailySalesPoint{Day: key}
		if agg, ok := byDay[key]; ok {
			point.RevenueCents = agg.revenue
			point.Quantity = agg.qty
		}
		report.ByDay = append(report.ByDay, point)
	}

	top := make([]domain.TopProduct, 0, len(byProduct))
	for id, entry := range byProduct {
		top = append(top, domain.TopProduct{
			ProductID:    id,
			ProductName:  entry.name,
			Quantity:     entry.qty,
			RevenueCents: entry.revenue,
		})
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return cmpString(a.ProductName, b.ProductName)
	})
	if len(top) > 5 {
		top = top[:5]
	}
	report.TopProducts = top

	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
		if limit > 0 && len(logs) >= limit {
			break
		}
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" {
		return store.ErrInvalidArgument
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("%w: username already exists", store.ErrInvalidArgument)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
