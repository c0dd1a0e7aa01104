package store

import (
	"context"
	"errors"
	"time"

	"inventoryledger/internal/domain"
)

var (
	// ErrNotFound is returned when a customer, product, sale, or return
	// lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuantity is returned for non-positive quantities. It is
	// raised before any product lock is taken.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientStock is wrapped with the available and requested
	// amounts, e.g. "insufficient stock: available 3, requested 7".
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrReturnExceedsSale is wrapped with the maximum still returnable
	// quantity for the sale.
	ErrReturnExceedsSale = errors.New("return quantity exceeds quantity sold")

	// ErrReferenced rejects deletion of a record other ledger rows point at.
	ErrReferenced = errors.New("record is referenced")

	// ErrInvalidArgument covers malformed fields and uniqueness conflicts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOperationFailed wraps storage or lock failures. No partial stock
	// mutation is ever committed under it, so retrying the whole operation
	// is safe.
	ErrOperationFailed = errors.New("operation failed")
)

// Repository is the persistence contract for the stock ledger. Write
// operations that touch a product's stock are atomic: the record insert or
// update and the stock adjustment either both commit or neither does, under
// an exclusive per-product lock.
type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	RestockProduct(ctx context.Context, id string, quantity int) (*domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.SaleReceipt, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	UpdateSaleQuantity(ctx context.Context, saleID string, quantity int) (*domain.SaleReceipt, error)

	CreateReturn(ctx context.Context, ret domain.Return) (*domain.ReturnReceipt, error)
	GetReturnByID(ctx context.Context, id string) (*domain.Return, error)
	ListReturnsForSale(ctx context.Context, saleID string) ([]domain.Return, error)
	UpdateReturnQuantity(ctx context.Context, returnID string, quantity int) (*domain.ReturnReceipt, error)

	GetInventoryReport(ctx context.Context) (domain.InventoryReport, error)
	GetSalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
