package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/haloapotek/apotek-api/internal/models"
)

// MemoryStore is an in-memory implementation of every repository
// interface, used by the service tests. A transaction takes the write
// lock for its whole duration and restores a snapshot on error, so the
// rollback guarantees match the SQL store.
type MemoryStore struct {
	mu sync.RWMutex

	nextProductID      int64
	nextCartID         int64
	nextCartItemID     int64
	nextOrderID        int64
	nextOrderItemID    int64
	nextPaymentID      int64
	nextPrescriptionID int64
	nextDeliveryID     int64
	nextUserID         int64

	products      map[int64]models.Product
	carts         map[int64]models.Cart
	cartByUser    map[int64]int64
	cartItems     map[int64]map[int64]models.CartItem // cartID -> productID -> item
	orders        map[int64]models.Order
	orderItems    map[int64][]models.OrderItem
	payments      map[int64]models.Payment
	prescriptions map[int64]models.Prescription
	deliveries    map[int64]models.Delivery
	users         map[int64]models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProductID:      1,
		nextCartID:         1,
		nextCartItemID:     1,
		nextOrderID:        1,
		nextOrderItemID:    1,
		nextPaymentID:      1,
		nextPrescriptionID: 1,
		nextDeliveryID:     1,
		nextUserID:         1,
		products:           make(map[int64]models.Product),
		carts:              make(map[int64]models.Cart),
		cartByUser:         make(map[int64]int64),
		cartItems:          make(map[int64]map[int64]models.CartItem),
		orders:             make(map[int64]models.Order),
		orderItems:         make(map[int64][]models.OrderItem),
		payments:           make(map[int64]models.Payment),
		prescriptions:      make(map[int64]models.Prescription),
		deliveries:         make(map[int64]models.Delivery),
		users:              make(map[int64]models.User),
	}
}

// NewMemory assembles a Store backed by a single MemoryStore.
func NewMemory() *Store {
	m := NewMemoryStore()
	return &Store{
		Products:      m,
		Carts:         m,
		Orders:        m,
		Payments:      m,
		Prescriptions: m,
		Deliveries:    m,
		Users:         m,
		Tx:            m,
	}
}

// transaction-aware locking: inside WithTransaction the write lock is
// already held, so nested repository calls must not re-lock.
type memTxKey struct{}

func inTx(ctx context.Context) bool {
	v, ok := ctx.Value(memTxKey{}).(bool)
	return ok && v
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !inTx(ctx) {
		m.mu.Unlock()
	}
}

// WithTransaction serializes against every other access and restores a
// full snapshot if fn fails: no partial write is ever observable.
func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx) // nested unit joins the outer one
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	products      map[int64]models.Product
	carts         map[int64]models.Cart
	cartByUser    map[int64]int64
	cartItems     map[int64]map[int64]models.CartItem
	orders        map[int64]models.Order
	orderItems    map[int64][]models.OrderItem
	payments      map[int64]models.Payment
	prescriptions map[int64]models.Prescription
	deliveries    map[int64]models.Delivery
	users         map[int64]models.User

	nextProductID, nextCartID, nextCartItemID, nextOrderID, nextOrderItemID,
	nextPaymentID, nextPrescriptionID, nextDeliveryID, nextUserID int64
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		products:      make(map[int64]models.Product, len(m.products)),
		carts:         make(map[int64]models.Cart, len(m.carts)),
		cartByUser:    make(map[int64]int64, len(m.cartByUser)),
		cartItems:     make(map[int64]map[int64]models.CartItem, len(m.cartItems)),
		orders:        make(map[int64]models.Order, len(m.orders)),
		orderItems:    make(map[int64][]models.OrderItem, len(m.orderItems)),
		payments:      make(map[int64]models.Payment, len(m.payments)),
		prescriptions: make(map[int64]models.Prescription, len(m.prescriptions)),
		deliveries:    make(map[int64]models.Delivery, len(m.deliveries)),
		users:         make(map[int64]models.User, len(m.users)),

		nextProductID: m.nextProductID, nextCartID: m.nextCartID,
		nextCartItemID: m.nextCartItemID, nextOrderID: m.nextOrderID,
		nextOrderItemID: m.nextOrderItemID, nextPaymentID: m.nextPaymentID,
		nextPrescriptionID: m.nextPrescriptionID, nextDeliveryID: m.nextDeliveryID,
		nextUserID: m.nextUserID,
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.carts {
		s.carts[k] = v
	}
	for k, v := range m.cartByUser {
		s.cartByUser[k] = v
	}
	for k, inner := range m.cartItems {
		cp := make(map[int64]models.CartItem, len(inner))
		for pk, pv := range inner {
			cp[pk] = pv
		}
		s.cartItems[k] = cp
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	for k, v := range m.orderItems {
		s.orderItems[k] = append([]models.OrderItem(nil), v...)
	}
	for k, v := range m.payments {
		s.payments[k] = v
	}
	for k, v := range m.prescriptions {
		s.prescriptions[k] = v
	}
	for k, v := range m.deliveries {
		s.deliveries[k] = v
	}
	for k, v := range m.users {
		s.users[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.products = s.products
	m.carts = s.carts
	m.cartByUser = s.cartByUser
	m.cartItems = s.cartItems
	m.orders = s.orders
	m.orderItems = s.orderItems
	m.payments = s.payments
	m.prescriptions = s.prescriptions
	m.deliveries = s.deliveries
	m.users = s.users
	m.nextProductID = s.nextProductID
	m.nextCartID = s.nextCartID
	m.nextCartItemID = s.nextCartItemID
	m.nextOrderID = s.nextOrderID
	m.nextOrderItemID = s.nextOrderItemID
	m.nextPaymentID = s.nextPaymentID
	m.nextPrescriptionID = s.nextPrescriptionID
	m.nextDeliveryID = s.nextDeliveryID
	m.nextUserID = s.nextUserID
}

// Ensure interfaces
var (
	_ ProductRepository      = (*MemoryStore)(nil)
	_ CartRepository         = (*MemoryStore)(nil)
	_ OrderRepository        = (*MemoryStore)(nil)
	_ PaymentRepository      = (*MemoryStore)(nil)
	_ PrescriptionRepository = (*MemoryStore)(nil)
	_ DeliveryRepository     = (*MemoryStore)(nil)
	_ UserRepository         = (*MemoryStore)(nil)
	_ TxManager              = (*MemoryStore)(nil)
)

//
// --- ProductRepository ---
//

func (m *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return ErrDuplicate
		}
	}
	p.ID = m.nextProductID
	m.nextProductID++
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

// GetProductForUpdate is identical to GetProduct here: within a
// transaction the whole store is already exclusively locked.
func (m *MemoryStore) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return m.GetProduct(ctx, id)
}

func (m *MemoryStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[p.ID]; !ok {
		return ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Product, 0)
	for _, p := range m.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.RequiresPrescription != nil && p.RequiresPrescription != *f.RequiresPrescription {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Reserve(ctx context.Context, productID int64, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return &models.InsufficientStockError{ProductID: productID}
	}
	p.Stock -= qty
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) Release(ctx context.Context, productID int64, qty int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) CountLowStock(ctx context.Context, threshold int) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	n := 0
	for _, p := range m.products {
		if p.IsActive && p.Stock < threshold {
			n++
		}
	}
	return n, nil
}

//
// --- CartRepository ---
//

func (m *MemoryStore) GetOrCreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if id, ok := m.cartByUser[userID]; ok {
		c := m.carts[id]
		return &c, nil
	}
	c := models.Cart{ID: m.nextCartID, UserID: userID}
	m.nextCartID++
	m.carts[c.ID] = c
	m.cartByUser[userID] = c.ID
	m.cartItems[c.ID] = make(map[int64]models.CartItem)
	return &c, nil
}

func (m *MemoryStore) CartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	items := make([]models.CartItem, 0, len(m.cartItems[cartID]))
	for _, it := range m.cartItems[cartID] {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items, nil
}

func (m *MemoryStore) GetCartItem(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	it, ok := m.cartItems[cartID][productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := it
	return &cp, nil
}

func (m *MemoryStore) SaveCartItem(ctx context.Context, item *models.CartItem) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	inner, ok := m.cartItems[item.CartID]
	if !ok {
		return ErrNotFound
	}
	if existing, ok := inner[item.ProductID]; ok {
		item.ID = existing.ID
	} else {
		item.ID = m.nextCartItemID
		m.nextCartItemID++
	}
	inner[item.ProductID] = *item
	return nil
}

func (m *MemoryStore) DeleteCartItem(ctx context.Context, cartID, productID int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	inner := m.cartItems[cartID]
	if _, ok := inner[productID]; !ok {
		return ErrNotFound
	}
	delete(inner, productID)
	return nil
}

func (m *MemoryStore) ClearCart(ctx context.Context, cartID int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.cartItems[cartID] = make(map[int64]models.CartItem)
	return nil
}

//
// --- OrderRepository ---
//

func (m *MemoryStore) CreateOrder(ctx context.Context, o *models.Order, items []models.OrderItem) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicate
		}
	}
	o.ID = m.nextOrderID
	m.nextOrderID++
	stored := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = m.nextOrderItemID
		m.nextOrderItemID++
		it.OrderID = o.ID
		stored = append(stored, it)
	}
	m.orders[o.ID] = *o
	m.orderItems[o.ID] = stored
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (m *MemoryStore) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *MemoryStore) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) OrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	return append([]models.OrderItem(nil), m.orderItems[orderID]...), nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, o *models.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	m.orders[o.ID] = *o
	return nil
}

func (m *MemoryStore) matchOrder(o models.Order, f OrderFilter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if f.DriverID != nil {
		matched := false
		for _, d := range m.deliveries {
			if d.OrderID == o.ID && d.DriverID != nil && *d.DriverID == *f.DriverID {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(f.Status) > 0 {
		matched := false
		for _, s := range f.Status {
			if o.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.PaymentStatus != nil && o.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.OrderNumber != "" && !strings.Contains(o.OrderNumber, f.OrderNumber) {
		return false
	}
	if f.CreatedBefore != nil && !o.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	if f.CreatedAfter != nil && o.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	return true
}

func (m *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		if m.matchOrder(o, f) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) CountOrders(ctx context.Context, f OrderFilter) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	n := 0
	for _, o := range m.orders {
		if m.matchOrder(o, f) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SumOrderTotals(ctx context.Context, f OrderFilter) (float64, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	var sum float64
	for _, o := range m.orders {
		if m.matchOrder(o, f) {
			sum += o.TotalAmount
		}
	}
	return sum, nil
}

//
// --- PaymentRepository ---
//

func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.payments {
		if existing.PaymentNumber == p.PaymentNumber {
			return ErrDuplicate
		}
	}
	p.ID = m.nextPaymentID
	m.nextPaymentID++
	m.payments[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) GetPaymentForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return m.GetPayment(ctx, id)
}

func (m *MemoryStore) UpdatePayment(ctx context.Context, p *models.Payment) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	m.payments[p.ID] = *p
	return nil
}

func (m *MemoryStore) PaymentsByOrder(ctx context.Context, orderID int64) ([]models.Payment, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Payment, 0)
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Payment, 0)
	for _, p := range m.payments {
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		if f.PaymentNumber != "" && !strings.Contains(p.PaymentNumber, f.PaymentNumber) {
			continue
		}
		if f.OrderUserID != nil {
			o, ok := m.orders[p.OrderID]
			if !ok || o.UserID != *f.OrderUserID {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

//
// --- PrescriptionRepository ---
//

func (m *MemoryStore) CreatePrescription(ctx context.Context, p *models.Prescription) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextPrescriptionID
	m.nextPrescriptionID++
	m.prescriptions[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPrescription(ctx context.Context, id int64) (*models.Prescription, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) GetPrescriptionForUpdate(ctx context.Context, id int64) (*models.Prescription, error) {
	return m.GetPrescription(ctx, id)
}

func (m *MemoryStore) UpdatePrescription(ctx context.Context, p *models.Prescription) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.prescriptions[p.ID]; !ok {
		return ErrNotFound
	}
	m.prescriptions[p.ID] = *p
	return nil
}

func (m *MemoryStore) LatestPrescriptionByOrder(ctx context.Context, orderID int64) (*models.Prescription, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	var latest *models.Prescription
	for id := range m.prescriptions {
		p := m.prescriptions[id]
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			cp := p
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) matchPrescription(p models.Prescription, f PrescriptionFilter) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.OrderUserID != nil {
		o, ok := m.orders[p.OrderID]
		if !ok || o.UserID != *f.OrderUserID {
			return false
		}
	}
	return true
}

func (m *MemoryStore) ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]models.Prescription, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Prescription, 0)
	for _, p := range m.prescriptions {
		if m.matchPrescription(p, f) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) CountPrescriptions(ctx context.Context, f PrescriptionFilter) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	n := 0
	for _, p := range m.prescriptions {
		if m.matchPrescription(p, f) {
			n++
		}
	}
	return n, nil
}

//
// --- DeliveryRepository ---
//

func (m *MemoryStore) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.deliveries {
		if existing.OrderID == d.OrderID || existing.TrackingNumber == d.TrackingNumber {
			return ErrDuplicate
		}
	}
	d.ID = m.nextDeliveryID
	m.nextDeliveryID++
	m.deliveries[d.ID] = *d
	return nil
}

func (m *MemoryStore) GetDelivery(ctx context.Context, id int64) (*models.Delivery, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	d, ok := m.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := d
	return &cp, nil
}

func (m *MemoryStore) GetDeliveryForUpdate(ctx context.Context, id int64) (*models.Delivery, error) {
	return m.GetDelivery(ctx, id)
}

func (m *MemoryStore) GetDeliveryByOrder(ctx context.Context, orderID int64) (*models.Delivery, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, d := range m.deliveries {
		if d.OrderID == orderID {
			cp := d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetDeliveryByTracking(ctx context.Context, trackingNumber string) (*models.Delivery, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, d := range m.deliveries {
		if d.TrackingNumber == trackingNumber {
			cp := d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.deliveries[d.ID]; !ok {
		return ErrNotFound
	}
	m.deliveries[d.ID] = *d
	return nil
}

func (m *MemoryStore) matchDelivery(d models.Delivery, f DeliveryFilter) bool {
	if f.DriverID != nil && (d.DriverID == nil || *d.DriverID != *f.DriverID) {
		return false
	}
	if f.UnassignedOnly && d.DriverID != nil {
		return false
	}
	if len(f.Status) > 0 {
		matched := false
		for _, s := range f.Status {
			if d.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if f.TrackingNumber != "" && !strings.Contains(d.TrackingNumber, f.TrackingNumber) {
		return false
	}
	if f.OrderUserID != nil {
		o, ok := m.orders[d.OrderID]
		if !ok || o.UserID != *f.OrderUserID {
			return false
		}
	}
	return true
}

func (m *MemoryStore) ListDeliveries(ctx context.Context, f DeliveryFilter) ([]models.Delivery, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]models.Delivery, 0)
	for _, d := range m.deliveries {
		if m.matchDelivery(d, f) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) CountDeliveries(ctx context.Context, f DeliveryFilter) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	n := 0
	for _, d := range m.deliveries {
		if m.matchDelivery(d, f) {
			n++
		}
	}
	return n, nil
}

//
// --- UserRepository ---
//

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	u.ID = m.nextUserID
	m.nextUserID++
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	for _, u := range m.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateUser(ctx context.Context, u *models.User) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	n := 0
	for _, u := range m.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.ActiveOnly && !u.IsActive {
			continue
		}
		n++
	}
	return n, nil
}
