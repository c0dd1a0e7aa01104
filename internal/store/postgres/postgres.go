// Package postgres implements the ledger repository on PostgreSQL. Every
// stock-mutating operation runs in a serializable transaction that locks the
// product row with SELECT ... FOR UPDATE, so sufficiency checks, the
// cumulative-return sum, and the stock write all observe the same snapshot.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"inventoryledger/internal/domain"
	"inventoryledger/internal/store"
	"inventoryledger/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	query := `
		SELECT id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
		FROM products
		WHERE 1=1
	`
	args := make([]any, 0, 4)
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND lower(name) LIKE $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.MinPriceCents > 0 {
		args = append(args, filter.MinPriceCents)
		query += fmt.Sprintf(" AND price_cents >= $%d", len(args))
	}
	if filter.MaxPriceCents > 0 {
		args = append(args, filter.MaxPriceCents)
		query += fmt.Sprintf(" AND price_cents <= $%d", len(args))
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.StockQty, &p.MinThreshold, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 || product.StockQty < 0 || product.MinThreshold < 0 {
		return nil, store.ErrInvalidArgument
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, product.Category, product.PriceCents, product.StockQty, product.MinThreshold, product.Description, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product name already exists", store.ErrInvalidArgument)
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 || product.MinThreshold < 0 {
		return nil, store.ErrInvalidArgument
	}

	// Stock is deliberately absent from the SET list; only ledger writes
	// and RestockProduct touch it.
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, min_threshold = $5, description = $6, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
	`, product.ID, product.Name, product.Category, product.PriceCents, product.MinThreshold, product.Description)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, product.ID)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product name already exists", store.ErrInvalidArgument)
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: product has recorded sales", store.ErrReferenced)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) RestockProduct(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_qty = stock_qty + $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
	`, id, quantity)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
		FROM products
		WHERE stock_qty <= min_threshold
		ORDER BY stock_qty, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.FirstName == "" || customer.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", store.ErrInvalidArgument)
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, first_name, last_name, email, phone, address, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, customer.ID, customer.FirstName, customer.LastName, customer.Email, customer.Phone, customer.Address, customer.RegisteredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already exists", store.ErrInvalidArgument)
		}
		return nil, err
	}

	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, address, registered_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.FirstName, &customer.LastName, &customer.Email, &customer.Phone, &customer.Address, &customer.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	customer.RegisteredAt = customer.RegisteredAt.UTC()
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.queryCustomers(ctx, `
		SELECT id, first_name, last_name, email, phone, address, registered_at
		FROM customers
		ORDER BY first_name, last_name
	`)
}

func (s *Store) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	needle := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	return s.queryCustomers(ctx, `
		SELECT id, first_name, last_name, email, phone, address, registered_at
		FROM customers
		WHERE lower(first_name || ' ' || last_name || ' ' || email) LIKE $1
		ORDER BY first_name, last_name
	`, needle)
}

func (s *Store) queryCustomers(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.RegisteredAt); err != nil {
			return nil, err
		}
		c.RegisteredAt = c.RegisteredAt.UTC()
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

// lockProduct reads the product row FOR UPDATE inside tx, serializing all
// concurrent ledger writes against the same product.
func lockProduct(ctx context.Context, tx *sql.Tx, productID string) (domain.Product, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, stock_qty, min_threshold, description, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
		}
		return domain.Product{}, err
	}
	return product, nil
}

func setStockTx(ctx context.Context, tx *sql.Tx, productID string, stockQty int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_qty = $2, updated_at = now()
		WHERE id = $1
	`, productID, stockQty)
	return err
}

func sumReturnedTx(ctx context.Context, tx *sql.Tx, saleID string, excludeID string) (int, error) {
	var total int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM returns
		WHERE sale_id = $1 AND id <> $2
	`, saleID, excludeID).Scan(&total)
	return total, err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.SaleReceipt, error) {
	if sale.Quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var customerName string
	err = tx.QueryRowContext(ctx, `
		SELECT first_name || ' ' || last_name FROM customers WHERE id = $1
	`, sale.CustomerID).Scan(&customerName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", store.ErrNotFound, sale.CustomerID)
		}
		return nil, err
	}

	product, err := lockProduct(ctx, tx, sale.ProductID)
	if err != nil {
		return nil, err
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, product_id, quantity, unit_price_cents, total_cents, sold_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.CustomerID, sale.ProductID, sale.Quantity, sale.UnitPriceCents, sale.TotalCents, sale.SoldAt)
	if err != nil {
		return nil, err
	}

	product.StockQty -= sale.Quantity
	if err := setStockTx(ctx, tx, product.ID, product.StockQty); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}

	return &domain.SaleReceipt{
		Sale:           sale,
		CustomerName:   customerName,
		ProductName:    product.Name,
		RemainingStock: product.StockQty,
		StockStatus:    product.StockStatus(),
	}, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, product_id, quantity, unit_price_cents, total_cents, sold_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.CustomerID, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents, &sale.TotalCents, &sale.SoldAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	sale.SoldAt = sale.SoldAt.UTC()
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, product_id, quantity, unit_price_cents, total_cents, sold_at
		FROM sales
		ORDER BY sold_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents, &sale.TotalCents, &sale.SoldAt); err != nil {
			return nil, err
		}
		sale.SoldAt = sale.SoldAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) UpdateSaleQuantity(ctx context.Context, saleID string, quantity int) (*domain.SaleReceipt, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var sale domain.Sale
	err = tx.QueryRowContext(ctx, `
		SELECT id, customer_id, product_id, quantity, unit_price_cents, total_cents, sold_at
		FROM sales
		WHERE id = $1
	`, saleID).Scan(&sale.ID, &sale.CustomerID, &sale.ProductID, &sale.Quantity, &sale.UnitPriceCents, &sale.TotalCents, &sale.SoldAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
		}
		return nil, err
	}

	product, err := lockProduct(ctx, tx, sale.ProductID)
	if err != nil {
		return nil, err
	}

	delta := quantity - sale.Quantity
	if delta > 0 && product.StockQty < delta {
		return nil, fmt.Errorf("%w: available %d, requested %d", store.ErrInsufficientStock, product.StockQty, delta)
	}
	alreadyReturned, err := sumReturnedTx(ctx, tx, saleID, "")
	if err != nil {
		return nil, err
	}
	if quantity < alreadyReturned {
		return nil, fmt.Errorf("%w: %d already returned against this sale", store.ErrReturnExceedsSale, alreadyReturned)
	}

	sale.Quantity = quantity
	sale.TotalCents = int64(quantity) * sale.UnitPriceCents
	_, err = tx.ExecContext(ctx, `
		UPDATE sales SET quantity = $2, total_cents = $3 WHERE id = $1
	`, saleID, sale.Quantity, sale.TotalCents)
	if err != nil {
		return nil, err
	}

	product.StockQty -= delta
	if err := setStockTx(ctx, tx, product.ID, product.StockQty); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}

	var customerName string
	if customer, lookupErr := s.GetCustomerByID(ctx, sale.CustomerID); lookupErr == nil {
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

func (s *Store) CreateReturn(ctx context.Context, ret domain.Return) (*domain.ReturnReceipt, error) {
	if ret.Quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var sale domain.Sale
	err = tx.QueryRowContext(ctx, `
		SELECT id, product_id, quantity FROM sales WHERE id = $1
	`, ret.SaleID).Scan(&sale.ID, &sale.ProductID, &sale.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
		}
		return nil, err
	}
	if ret.ProductID != "" && ret.ProductID != sale.ProductID {
		return nil, fmt.Errorf("%w: return product must match the sale product", store.ErrInvalidArgument)
	}

	product, err := lockProduct(ctx, tx, sale.ProductID)
	if err != nil {
		return nil, err
	}

	alreadyReturned, err := sumReturnedTx(ctx, tx, ret.SaleID, "")
	if err != nil {
		return nil, err
	}
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

	_, err = tx.ExecContext(ctx, `
		INSERT INTO returns (id, sale_id, product_id, quantity, reason, returned_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, ret.ID, ret.SaleID, ret.ProductID, ret.Quantity, ret.Reason, ret.ReturnedAt)
	if err != nil {
		return nil, err
	}

	product.StockQty += ret.Quantity
	if err := setStockTx(ctx, tx, product.ID, product.StockQty); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}

	return &domain.ReturnReceipt{
		Return:       ret,
		ProductName:  product.Name,
		UpdatedStock: product.StockQty,
		StockStatus:  product.StockStatus(),
	}, nil
}

func (s *Store) GetReturnByID(ctx context.Context, id string) (*domain.Return, error) {
	var ret domain.Return
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, product_id, quantity, reason, returned_at
		FROM returns
		WHERE id = $1
	`, id).Scan(&ret.ID, &ret.SaleID, &ret.ProductID, &ret.Quantity, &ret.Reason, &ret.ReturnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: return %s", store.ErrNotFound, id)
		}
		return nil, err
	}
	ret.ReturnedAt = ret.ReturnedAt.UTC()
	return &ret, nil
}

func (s *Store) ListReturnsForSale(ctx context.Context, saleID string) ([]domain.Return, error) {
	if _, err := s.GetSaleByID(ctx, saleID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, reason, returned_at
		FROM returns
		WHERE sale_id = $1
		ORDER BY returned_at
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.Return, 0, 4)
	for rows.Next() {
		var ret domain.Return
		if err := rows.Scan(&ret.ID, &ret.SaleID, &ret.ProductID, &ret.Quantity, &ret.Reason, &ret.ReturnedAt); err != nil {
			return nil, err
		}
		ret.ReturnedAt = ret.ReturnedAt.UTC()
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return returns, nil
}

func (s *Store) UpdateReturnQuantity(ctx context.Context, returnID string, quantity int) (*domain.ReturnReceipt, error) {
	if quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	var ret domain.Return
	err = tx.QueryRowContext(ctx, `
		SELECT id, sale_id, product_id, quantity, reason, returned_at
		FROM returns
		WHERE id = $1
	`, returnID).Scan(&ret.ID, &ret.SaleID, &ret.ProductID, &ret.Quantity, &ret.Reason, &ret.ReturnedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: return %s", store.ErrNotFound, returnID)
		}
		return nil, err
	}

	var saleQuantity int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM sales WHERE id = $1
	`, ret.SaleID).Scan(&saleQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
		}
		return nil, err
	}

	product, err := lockProduct(ctx, tx, ret.ProductID)
	if err != nil {
		return nil, err
	}

	returnedByOthers, err := sumReturnedTx(ctx, tx, ret.SaleID, returnID)
	if err != nil {
		return nil, err
	}
	if returnedByOthers+quantity > saleQuantity {
		return nil, fmt.Errorf("%w: maximum returnable: %d", store.ErrReturnExceedsSale, saleQuantity-returnedByOthers)
	}

	delta := quantity - ret.Quantity
	if delta < 0 && product.StockQty < -delta {
		return nil, fmt.Errorf("%w: available %d, requested %d", store.ErrInsufficientStock, product.StockQty, -delta)
	}

	ret.Quantity = quantity
	_, err = tx.ExecContext(ctx, `
		UPDATE returns SET quantity = $2 WHERE id = $1
	`, returnID, quantity)
	if err != nil {
		return nil, err
	}

	product.StockQty += delta
	if err := setStockTx(ctx, tx, product.ID, product.StockQty); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrOperationFailed, err)
	}

	return &domain.ReturnReceipt{
		Return:       ret,
		ProductName:  product.Name,
		UpdatedStock: product.StockQty,
		StockStatus:  product.StockStatus(),
	}, nil
}

func (s *Store) GetInventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	var report domain.InventoryReport

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(stock_qty::bigint * price_cents), 0),
			COUNT(*) FILTER (WHERE stock_qty <= 0),
			COUNT(*) FILTER (WHERE stock_qty > 0 AND stock_qty <= min_threshold),
			COUNT(*) FILTER (WHERE stock_qty > min_threshold)
		FROM products
	`).Scan(&report.InventoryValueCents, &report.StockCounts.Out, &report.StockCounts.Low, &report.StockCounts.In)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	report.LowStockCount = report.StockCounts.Out + report.StockCounts.Low

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(category, ''), 'uncategorized'),
		       COUNT(*),
		       COALESCE(SUM(stock_qty::bigint * price_cents), 0)
		FROM products
		GROUP BY 1
		ORDER BY 1
	`)
	if err != nil {
		return domain.InventoryReport{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.CategoryBreakdown
		if err := rows.Scan(&entry.Category, &entry.Products, &entry.ValueCents); err != nil {
			return domain.InventoryReport{}, err
		}
		report.Categories = append(report.Categories, entry)
	}
	if err := rows.Err(); err != nil {
		return domain.InventoryReport{}, err
	}

	return report, nil
}

func (s *Store) GetSalesReport(ctx context.Context, from time.Time, to time.Time) (domain.SalesReport, error) {
	var report domain.SalesReport

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM sales),
			(SELECT COALESCE(SUM(total_cents), 0) FROM sales),
			(SELECT COUNT(*) FROM returns)
	`).Scan(&report.TotalCustomers, &report.TotalSales, &report.TotalRevenueCents, &report.TotalReturns)
	if err != nil {
		return domain.SalesReport{}, err
	}
	if report.TotalSales > 0 {
		rate := float64(report.TotalReturns) / float64(report.TotalSales) * 100
		report.ReturnRatePercent = float64(int(rate*100+0.5)) / 100
	}

	// Dense per-day series; generate_series zero-fills days with no sales.
	dayRows, err := s.db.QueryContext(ctx, `
		SELECT to_char(d.day, 'YYYY-MM-DD'),
		       COALESCE(SUM(s.total_cents), 0),
		       COALESCE(SUM(s.quantity), 0)
		FROM generate_series($1::date, $2::date - interval '1 day', interval '1 day') AS d(day)
		LEFT JOIN sales s ON s.sold_at >= d.day AND s.sold_at < d.day + interval '1 day'
		GROUP BY d.day
		ORDER BY d.day
	`, from.UTC(), to.UTC())
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer dayRows.Close()

	for dayRows.Next() {
		var point domain.DailySalesPoint
		if err := dayRows.Scan(&point.Day, &point.RevenueCents, &point.Quantity); err != nil {
			return domain.SalesReport{}, err
		}
		report.ByDay = append(report.ByDay, point)
	}
	if err := dayRows.Err(); err != nil {
		return domain.SalesReport{}, err
	}

	topRows, err := s.db.QueryContext(ctx, `
		SELECT s.product_id, COALESCE(p.name, s.product_id), SUM(s.quantity), SUM(s.total_cents)
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		GROUP BY s.product_id, p.name
		ORDER BY SUM(s.quantity) DESC, COALESCE(p.name, s.product_id)
		LIMIT 5
	`)
	if err != nil {
		return domain.SalesReport{}, err
	}
	defer topRows.Close()

	for topRows.Next() {
		var top domain.TopProduct
		if err := topRows.Scan(&top.ProductID, &top.ProductName, &top.Quantity, &top.RevenueCents); err != nil {
			return domain.SalesReport{}, err
		}
		report.TopProducts = append(report.TopProducts, top)
	}
	if err := topRows.Err(); err != nil {
		return domain.SalesReport{}, err
	}

	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || user.Role == "" {
		return store.ErrInvalidArgument
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username already exists", store.ErrInvalidArgument)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
