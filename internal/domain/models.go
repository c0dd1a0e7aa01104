package domain

import "time"

const (
	StockStatusIn  = "IN_STOCK"
	StockStatusLow = "LOW_STOCK"
	StockStatusOut = "OUT_OF_STOCK"
)

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	PriceCents   int64     `json:"price_cents"`
	StockQty     int       `json:"stock_qty"`
	MinThreshold int       `json:"min_threshold"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StockStatus buckets the product's stock against its reorder threshold.
func (p Product) StockStatus() string {
	switch {
	case p.StockQty <= 0:
		return StockStatusOut
	case p.StockQty <= p.MinThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

type ProductCreateRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	PriceCents   int64  `json:"price_cents"`
	InitialStock int    `json:"initial_stock"`
	MinThreshold int    `json:"min_threshold"`
	Description  string `json:"description"`
}

type ProductUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Category     *string `json:"category,omitempty"`
	PriceCents   *int64  `json:"price_cents,omitempty"`
	MinThreshold *int    `json:"min_threshold,omitempty"`
	Description  *string `json:"description,omitempty"`
}

type ProductFilter struct {
	Search        string
	Category      string
	MinPriceCents int64
	MaxPriceCents int64
}

type RestockRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

type Customer struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (c Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type CustomerCreateRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Sale is one committed ledger row. TotalCents is always Quantity times
// UnitPriceCents, captured at sale time; it is never re-derived from the
// product's current price.
type Sale struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id"`
	ProductID      string    `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
	SoldAt         time.Time `json:"sold_at"`
}

type SaleCreateRequest struct {
	CustomerID     string `json:"customer_id"`
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents,omitempty"`
}

// SaleEditRequest enumerates the only sale field the ledger mutates in place.
type SaleEditRequest struct {
	Quantity int `json:"quantity"`
}

// SaleReceipt is the result of a committed sale write: the row itself plus
// the catalog context a caller needs to render it.
type SaleReceipt struct {
	Sale           Sale   `json:"sale"`
	CustomerName   string `json:"customer_name"`
	ProductName    string `json:"product_name"`
	RemainingStock int    `json:"remaining_stock"`
	StockStatus    string `json:"stock_status"`
}

// Return references a prior sale. ProductID always equals the sale's product.
type Return struct {
	ID         string    `json:"id"`
	SaleID     string    `json:"sale_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason,omitempty"`
	ReturnedAt time.Time `json:"returned_at"`
}

type ReturnCreateRequest struct {
	SaleID   string `json:"sale_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

type ReturnEditRequest struct {
	Quantity int `json:"quantity"`
}

type ReturnReceipt struct {
	Return       Return `json:"return"`
	ProductName  string `json:"product_name"`
	UpdatedStock int    `json:"updated_stock"`
	StockStatus  string `json:"stock_status"`
}

type LowStockAlert struct {
	Product     Product `json:"product"`
	StockStatus string  `json:"stock_status"`
}

type LowStockResponse struct {
	AlertCount int             `json:"alert_count"`
	Alerts     []LowStockAlert `json:"alerts"`
}

type CategoryBreakdown struct {
	Category   string `json:"category"`
	Products   int    `json:"products"`
	ValueCents int64  `json:"value_cents"`
}

type StockCounts struct {
	In  int `json:"in"`
	Low int `json:"low"`
	Out int `json:"out"`
}

type InventoryReport struct {
	LowStockCount       int                 `json:"low_stock_count"`
	InventoryValueCents int64               `json:"inventory_value_cents"`
	StockCounts         StockCounts         `json:"stock_counts"`
	Categories          []CategoryBreakdown `json:"categories"`
}

type DailySalesPoint struct {
	Day          string `json:"day"`
	RevenueCents int64  `json:"revenue_cents"`
	Quantity     int    `json:"quantity"`
}

type TopProduct struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenue_cents"`
}

type SalesReport struct {
	TotalCustomers    int               `json:"total_customers"`
	TotalSales        int               `json:"total_sales"`
	TotalRevenueCents int64             `json:"total_revenue_cents"`
	TotalReturns      int               `json:"total_returns"`
	ReturnRatePercent float64           `json:"return_rate_percent"`
	ByDay             []DailySalesPoint `json:"by_day"`
	TopProducts       []TopProduct      `json:"top_products"`
}

type DashboardReport struct {
	GeneratedAt string          `json:"generated_at"`
	Inventory   InventoryReport `json:"inventory"`
	Sales       SalesReport     `json:"sales"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
