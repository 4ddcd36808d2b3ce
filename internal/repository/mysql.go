package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/haloapotek/apotek-api/internal/models"
)

// MySQLStore implements every repository interface on top of a raw
// *sql.DB. A running transaction rides in the context so that nested
// repository calls automatically join it.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// NewMySQL assembles a Store backed by a single MySQLStore.
func NewMySQL(db *sql.DB) *Store {
	s := NewMySQLStore(db)
	return &Store{
		Products:      s,
		Carts:         s,
		Orders:        s,
		Payments:      s,
		Prescriptions: s,
		Deliveries:    s,
		Users:         s,
		Tx:            s,
	}
}

type sqlTxKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *MySQLStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// WithTransaction runs fn inside a single SQL transaction. Nested calls
// join the outer transaction instead of opening a new one.
func (s *MySQLStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqlTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// translate maps driver-level errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return ErrDuplicate
	}
	return err
}

var (
	_ ProductRepository      = (*MySQLStore)(nil)
	_ CartRepository         = (*MySQLStore)(nil)
	_ OrderRepository        = (*MySQLStore)(nil)
	_ PaymentRepository      = (*MySQLStore)(nil)
	_ PrescriptionRepository = (*MySQLStore)(nil)
	_ DeliveryRepository     = (*MySQLStore)(nil)
	_ UserRepository         = (*MySQLStore)(nil)
	_ TxManager              = (*MySQLStore)(nil)
)

//
// --- Products ---
//

const productCols = `id, name, slug, description, price, stock, category, type,
	requires_prescription, is_active, image, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.Stock,
		&p.Category, &p.Type, &p.RequiresPrescription, &p.IsActive, &p.Image,
		&p.CreatedAt, &p.UpdatedAt)
}

func (s *MySQLStore) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `INSERT INTO products (name, slug, description, price, stock, category, type,
		requires_prescription, is_active, image, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.Stock, p.Category, p.Type,
		p.RequiresPrescription, p.IsActive, p.Image, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) getProduct(ctx context.Context, id int64, forUpdate bool) (*models.Product, error) {
	query := `SELECT ` + productCols + ` FROM products WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p models.Product
	if err := scanProduct(s.q(ctx).QueryRowContext(ctx, query, id), &p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *MySQLStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return s.getProduct(ctx, id, false)
}

func (s *MySQLStore) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return s.getProduct(ctx, id, true)
}

func (s *MySQLStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `UPDATE products SET name = ?, slug = ?, description = ?, price = ?,
		category = ?, type = ?, requires_prescription = ?, is_active = ?, image = ?,
		updated_at = ? WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.Category, p.Type,
		p.RequiresPrescription, p.IsActive, p.Image, p.UpdatedAt, p.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productCols + ` FROM products`
	var conds []string
	var args []any
	if f.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.RequiresPrescription != nil {
		conds = append(conds, "requires_prescription = ?")
		args = append(args, *f.RequiresPrescription)
	}
	if f.Search != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Product, 0)
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Reserve decrements stock with a guarded UPDATE. Zero rows affected
// means the guard failed: either the row is gone or stock is short.
func (s *MySQLStore) Reserve(ctx context.Context, productID int64, qty int) error {
	query := `UPDATE products SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`
	res, err := s.q(ctx).ExecContext(ctx, query, qty, productID, qty)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		err := s.q(ctx).QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return &models.InsufficientStockError{ProductID: productID}
	}
	return nil
}

func (s *MySQLStore) Release(ctx context.Context, productID int64, qty int) error {
	query := `UPDATE products SET stock = stock + ?, updated_at = NOW() WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query, qty, productID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) CountLowStock(ctx context.Context, threshold int) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE is_active = TRUE AND stock < ?`, threshold).Scan(&n)
	return n, translate(err)
}

//
// --- Carts ---
//

func (s *MySQLStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var c models.Cart
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = ?`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	res, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, NOW(), NOW())`, userID)
	if err != nil {
		return nil, translate(err)
	}
	c.UserID = userID
	c.ID, err = res.LastInsertId()
	return &c, err
}

const cartItemCols = `id, cart_id, product_id, quantity, price, created_at, updated_at`

func (s *MySQLStore) CartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+cartItemCols+` FROM cart_items WHERE cart_id = ? ORDER BY product_id`, cartID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.CartItem, 0)
	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity,
			&it.Price, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *MySQLStore) GetCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	var it models.CartItem
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+cartItemCols+` FROM cart_items WHERE cart_id = ? AND product_id = ?`,
		cartID, productID).
		Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Price, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

// SaveCartItem upserts on the (cart_id, product_id) unique key.
func (s *MySQLStore) SaveCartItem(ctx context.Context, item *models.CartItem) error {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), price = VALUES(price), updated_at = NOW()`
	res, err := s.q(ctx).ExecContext(ctx, query,
		item.CartID, item.ProductID, item.Quantity, item.Price)
	if err != nil {
		return translate(err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		item.ID = id
	}
	return nil
}

func (s *MySQLStore) DeleteCartItem(ctx context.Context, cartID, productID int64) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) ClearCart(ctx context.Context, cartID int64) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return translate(err)
}

//
// --- Orders ---
//

const orderCols = `id, order_number, user_id, total_amount, status, payment_status,
	payment_method, shipping_address, shipping_cost, notes, cancel_reason,
	approved_by, approved_at, processed_by, processed_at, cancelled_at, delivered_at,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }, o *models.Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &o.ShippingAddress, &o.ShippingCost,
		&o.Notes, &o.CancelReason, &o.ApprovedBy, &o.ApprovedAt, &o.ProcessedBy,
		&o.ProcessedAt, &o.CancelledAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
}

func (s *MySQLStore) CreateOrder(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	query := `INSERT INTO orders (order_number, user_id, total_amount, status, payment_status,
		payment_method, shipping_address, shipping_cost, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		o.OrderNumber, o.UserID, o.TotalAmount, o.Status, o.PaymentStatus,
		o.PaymentMethod, o.ShippingAddress, o.ShippingCost, o.Notes, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = o.ID
		itemRes, err := s.q(ctx).ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price, subtotal, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, items[i].ProductID, items[i].Quantity, items[i].Price,
			items[i].Subtotal, items[i].CreatedAt)
		if err != nil {
			return translate(err)
		}
		if items[i].ID, err = itemRes.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) getOrder(ctx context.Context, query string, arg any) (*models.Order, error) {
	var o models.Order
	if err := scanOrder(s.q(ctx).QueryRowContext(ctx, query, arg), &o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id = ?`, id)
}

func (s *MySQLStore) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE id = ? FOR UPDATE`, id)
}

func (s *MySQLStore) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	return s.getOrder(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number = ?`, number)
}

func (s *MySQLStore) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.subtotal,
		oi.created_at, COALESCE(p.name, '')
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ? ORDER BY oi.id`
	rows, err := s.q(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.OrderItem, 0)
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity,
			&it.Price, &it.Subtotal, &it.CreatedAt, &it.ProductName); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *MySQLStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	query := `UPDATE orders SET status = ?, payment_status = ?, notes = ?, cancel_reason = ?,
		approved_by = ?, approved_at = ?, processed_by = ?, processed_at = ?,
		cancelled_at = ?, delivered_at = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		o.Status, o.PaymentStatus, o.Notes, o.CancelReason,
		o.ApprovedBy, o.ApprovedAt, o.ProcessedBy, o.ProcessedAt,
		o.CancelledAt, o.DeliveredAt, o.UpdatedAt, o.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func orderFilterSQL(f OrderFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != nil {
		conds = append(conds, "o.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.DriverID != nil {
		conds = append(conds, "o.id IN (SELECT order_id FROM deliveries WHERE driver_id = ?)")
		args = append(args, *f.DriverID)
	}
	if len(f.Status) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(f.Status)), ", ")
		conds = append(conds, "o.status IN ("+ph+")")
		for _, st := range f.Status {
			args = append(args, st)
		}
	}
	if f.PaymentStatus != nil {
		conds = append(conds, "o.payment_status = ?")
		args = append(args, *f.PaymentStatus)
	}
	if f.OrderNumber != "" {
		conds = append(conds, "o.order_number LIKE ?")
		args = append(args, "%"+f.OrderNumber+"%")
	}
	if f.CreatedBefore != nil {
		conds = append(conds, "o.created_at < ?")
		args = append(args, *f.CreatedBefore)
	}
	if f.CreatedAfter != nil {
		conds = append(conds, "o.created_at >= ?")
		args = append(args, *f.CreatedAfter)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *MySQLStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	where, args := orderFilterSQL(f)
	query := `SELECT ` + orderCols + ` FROM orders o` + where + ` ORDER BY o.id DESC`
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Order, 0)
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CountOrders(ctx context.Context, f OrderFilter) (int, error) {
	where, args := orderFilterSQL(f)
	var n int
	err := s.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&n)
	return n, translate(err)
}

func (s *MySQLStore) SumOrderTotals(ctx context.Context, f OrderFilter) (float64, error) {
	where, args := orderFilterSQL(f)
	var sum float64
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(o.total_amount), 0) FROM orders o`+where, args...).Scan(&sum)
	return sum, translate(err)
}

//
// --- Payments ---
//

const paymentCols = `id, order_id, payment_number, amount, method, payment_proof, status,
	notes, verified_by, verified_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }, p *models.Payment) error {
	return row.Scan(&p.ID, &p.OrderID, &p.PaymentNumber, &p.Amount, &p.Method,
		&p.ProofRef, &p.Status, &p.Notes, &p.VerifiedBy, &p.VerifiedAt,
		&p.CreatedAt, &p.UpdatedAt)
}

func (s *MySQLStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payments (order_id, payment_number, amount, method, payment_proof,
		status, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.OrderID, p.PaymentNumber, p.Amount, p.Method, p.ProofRef,
		p.Status, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) getPayment(ctx context.Context, id int64, forUpdate bool) (*models.Payment, error) {
	query := `SELECT ` + paymentCols + ` FROM payments WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p models.Payment
	if err := scanPayment(s.q(ctx).QueryRowContext(ctx, query, id), &p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *MySQLStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.getPayment(ctx, id, false)
}

func (s *MySQLStore) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return s.getPayment(ctx, id, true)
}

func (s *MySQLStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	query := `UPDATE payments SET status = ?, payment_proof = ?, notes = ?,
		verified_by = ?, verified_at = ?, updated_at = ? WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.Status, p.ProofRef, p.Notes, p.VerifiedBy, p.VerifiedAt, p.UpdatedAt, p.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) PaymentsByOrder(ctx context.Context, orderID int64) ([]models.Payment, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Payment, 0)
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *MySQLStore) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	query := `SELECT p.id, p.order_id, p.payment_number, p.amount, p.method, p.payment_proof,
		p.status, p.notes, p.verified_by, p.verified_at, p.created_at, p.updated_at
		FROM payments p`
	var conds []string
	var args []any
	if f.OrderUserID != nil {
		query += ` JOIN orders o ON o.id = p.order_id`
		conds = append(conds, "o.user_id = ?")
		args = append(args, *f.OrderUserID)
	}
	if f.Status != nil {
		conds = append(conds, "p.status = ?")
		args = append(args, *f.Status)
	}
	if f.PaymentNumber != "" {
		conds = append(conds, "p.payment_number LIKE ?")
		args = append(args, "%"+f.PaymentNumber+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.id DESC"

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Payment, 0)
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

//
// --- Prescriptions ---
//

const prescriptionCols = `id, order_id, prescription_image, doctor_notes, status,
	verified_by, verified_at, rejection_reason, created_at, updated_at`

func scanPrescription(row interface{ Scan(...any) error }, p *models.Prescription) error {
	return row.Scan(&p.ID, &p.OrderID, &p.ImageRef, &p.DoctorNotes, &p.Status,
		&p.VerifiedBy, &p.VerifiedAt, &p.RejectionReason, &p.CreatedAt, &p.UpdatedAt)
}

func (s *MySQLStore) CreatePrescription(ctx context.Context, p *models.Prescription) error {
	query := `INSERT INTO prescriptions (order_id, prescription_image, doctor_notes, status,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.OrderID, p.ImageRef, p.DoctorNotes, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) getPrescription(ctx context.Context, id int64, forUpdate bool) (*models.Prescription, error) {
	query := `SELECT ` + prescriptionCols + ` FROM prescriptions WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var p models.Prescription
	if err := scanPrescription(s.q(ctx).QueryRowContext(ctx, query, id), &p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *MySQLStore) GetPrescription(ctx context.Context, id int64) (*models.Prescription, error) {
	return s.getPrescription(ctx, id, false)
}

func (s *MySQLStore) GetPrescriptionForUpdate(ctx context.Context, id int64) (*models.Prescription, error) {
	return s.getPrescription(ctx, id, true)
}

func (s *MySQLStore) UpdatePrescription(ctx context.Context, p *models.Prescription) error {
	query := `UPDATE prescriptions SET status = ?, doctor_notes = ?, verified_by = ?,
		verified_at = ?, rejection_reason = ?, updated_at = ? WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		p.Status, p.DoctorNotes, p.VerifiedBy, p.VerifiedAt, p.RejectionReason, p.UpdatedAt, p.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) LatestPrescriptionByOrder(ctx context.Context, orderID int64) (*models.Prescription, error) {
	query := `SELECT ` + prescriptionCols + ` FROM prescriptions
		WHERE order_id = ? ORDER BY id DESC LIMIT 1`
	var p models.Prescription
	if err := scanPrescription(s.q(ctx).QueryRowContext(ctx, query, orderID), &p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func prescriptionFilterSQL(f PrescriptionFilter) (string, string, []any) {
	join := ""
	var conds []string
	var args []any
	if f.OrderUserID != nil {
		join = ` JOIN orders o ON o.id = pr.order_id`
		conds = append(conds, "o.user_id = ?")
		args = append(args, *f.OrderUserID)
	}
	if f.Status != nil {
		conds = append(conds, "pr.status = ?")
		args = append(args, *f.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return join, where, args
}

func (s *MySQLStore) ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]models.Prescription, error) {
	join, where, args := prescriptionFilterSQL(f)
	query := `SELECT pr.id, pr.order_id, pr.prescription_image, pr.doctor_notes, pr.status,
		pr.verified_by, pr.verified_at, pr.rejection_reason, pr.created_at, pr.updated_at
		FROM prescriptions pr` + join + where + ` ORDER BY pr.id DESC`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Prescription, 0)
	for rows.Next() {
		var p models.Prescription
		if err := scanPrescription(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CountPrescriptions(ctx context.Context, f PrescriptionFilter) (int, error) {
	join, where, args := prescriptionFilterSQL(f)
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prescriptions pr`+join+where, args...).Scan(&n)
	return n, translate(err)
}

//
// --- Deliveries ---
//

const deliveryCols = `id, order_id, driver_id, tracking_number, status, delivery_address,
	notes, signature_image, delivery_photo, receiver_name, receiver_phone,
	current_latitude, current_longitude, location_updated_at,
	accepted_at, picked_up_at, delivered_at, evidence_uploaded_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }, d *models.Delivery) error {
	return row.Scan(&d.ID, &d.OrderID, &d.DriverID, &d.TrackingNumber, &d.Status,
		&d.Address, &d.Notes, &d.SignatureRef, &d.PhotoRef, &d.ReceiverName,
		&d.ReceiverPhone, &d.CurrentLatitude, &d.CurrentLongitude, &d.LocationUpdatedAt,
		&d.AcceptedAt, &d.PickedUpAt, &d.DeliveredAt, &d.EvidenceUploadedAt,
		&d.CreatedAt, &d.UpdatedAt)
}

func (s *MySQLStore) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `INSERT INTO deliveries (order_id, driver_id, tracking_number, status,
		delivery_address, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		d.OrderID, d.DriverID, d.TrackingNumber, d.Status, d.Address, d.Notes,
		d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) getDelivery(ctx context.Context, query string, arg any) (*models.Delivery, error) {
	var d models.Delivery
	if err := scanDelivery(s.q(ctx).QueryRowContext(ctx, query, arg), &d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *MySQLStore) GetDelivery(ctx context.Context, id int64) (*models.Delivery, error) {
	return s.getDelivery(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE id = ?`, id)
}

func (s *MySQLStore) GetDeliveryForUpdate(ctx context.Context, id int64) (*models.Delivery, error) {
	return s.getDelivery(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE id = ? FOR UPDATE`, id)
}

func (s *MySQLStore) GetDeliveryByOrder(ctx context.Context, orderID int64) (*models.Delivery, error) {
	return s.getDelivery(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE order_id = ?`, orderID)
}

func (s *MySQLStore) GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*models.Delivery, error) {
	return s.getDelivery(ctx,
		`SELECT `+deliveryCols+` FROM deliveries WHERE tracking_number = ?`, trackingNumber)
}

func (s *MySQLStore) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `UPDATE deliveries SET driver_id = ?, status = ?, notes = ?,
		signature_image = ?, delivery_photo = ?, receiver_name = ?, receiver_phone = ?,
		current_latitude = ?, current_longitude = ?, location_updated_at = ?,
		accepted_at = ?, picked_up_at = ?, delivered_at = ?, evidence_uploaded_at = ?,
		updated_at = ? WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		d.DriverID, d.Status, d.Notes,
		d.SignatureRef, d.PhotoRef, d.ReceiverName, d.ReceiverPhone,
		d.CurrentLatitude, d.CurrentLongitude, d.LocationUpdatedAt,
		d.AcceptedAt, d.PickedUpAt, d.DeliveredAt, d.EvidenceUploadedAt,
		d.UpdatedAt, d.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func deliveryFilterSQL(f DeliveryFilter) (string, string, []any) {
	join := ""
	var conds []string
	var args []any
	if f.OrderUserID != nil {
		join = ` JOIN orders o ON o.id = d.order_id`
		conds = append(conds, "o.user_id = ?")
		args = append(args, *f.OrderUserID)
	}
	if f.DriverID != nil {
		conds = append(conds, "d.driver_id = ?")
		args = append(args, *f.DriverID)
	}
	if f.UnassignedOnly {
		conds = append(conds, "d.driver_id IS NULL")
	}
	if len(f.Status) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?, ", len(f.Status)), ", ")
		conds = append(conds, "d.status IN ("+ph+")")
		for _, st := range f.Status {
			args = append(args, st)
		}
	}
	if f.TrackingNumber != "" {
		conds = append(conds, "d.tracking_number LIKE ?")
		args = append(args, "%"+f.TrackingNumber+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return join, where, args
}

func (s *MySQLStore) ListDeliveries(ctx context.Context, f DeliveryFilter) ([]models.Delivery, error) {
	join, where, args := deliveryFilterSQL(f)
	query := `SELECT d.id, d.order_id, d.driver_id, d.tracking_number, d.status,
		d.delivery_address, d.notes, d.signature_image, d.delivery_photo,
		d.receiver_name, d.receiver_phone, d.current_latitude, d.current_longitude,
		d.location_updated_at, d.accepted_at, d.picked_up_at, d.delivered_at,
		d.evidence_uploaded_at, d.created_at, d.updated_at
		FROM deliveries d` + join + where + ` ORDER BY d.id`

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]models.Delivery, 0)
	for rows.Next() {
		var d models.Delivery
		if err := scanDelivery(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CountDeliveries(ctx context.Context, f DeliveryFilter) (int, error) {
	join, where, args := deliveryFilterSQL(f)
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries d`+join+where, args...).Scan(&n)
	return n, translate(err)
}

//
// --- Users ---
//

const userCols = `id, name, email, password_hash, phone, address, role, is_active,
	driver_license, vehicle_number, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }, u *models.User) error {
	return row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Address,
		&u.Role, &u.IsActive, &u.DriverLicense, &u.VehicleNumber, &u.CreatedAt, &u.UpdatedAt)
}

func (s *MySQLStore) CreateUser(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (name, email, password_hash, phone, address, role, is_active,
		driver_license, vehicle_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.q(ctx).ExecContext(ctx, query,
		u.Name, u.Email, u.PasswordHash, u.Phone, u.Address, u.Role, u.IsActive,
		u.DriverLicense, u.VehicleNumber, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *MySQLStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := scanUser(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id), &u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := scanUser(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ?`, email), &u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *MySQLStore) UpdateUser(ctx context.Context, u *models.User) error {
	query := `UPDATE users SET name = ?, email = ?, password_hash = ?, phone = ?, address = ?,
		role = ?, is_active = ?, driver_license = ?, vehicle_number = ?, updated_at = ?
		WHERE id = ?`
	res, err := s.q(ctx).ExecContext(ctx, query,
		u.Name, u.Email, u.PasswordHash, u.Phone, u.Address, u.Role, u.IsActive,
		u.DriverLicense, u.VehicleNumber, u.UpdatedAt, u.ID)
	if err != nil {
		return translate(err)
	}
	return rowsOrNotFound(res)
}

func (s *MySQLStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	query := `SELECT COUNT(*) FROM users`
	var conds []string
	var args []any
	if f.Role != nil {
		conds = append(conds, "role = ?")
		args = append(args, *f.Role)
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active = TRUE")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	var n int
	err := s.q(ctx).QueryRowContext(ctx, query, args...).Scan(&n)
	return n, translate(err)
}

// rowsOrNotFound treats zero affected rows as a missing target. The
// DSN must set clientFoundRows=true so RowsAffected counts matched
// rows; otherwise an UPDATE writing unchanged values reports zero.
func rowsOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
