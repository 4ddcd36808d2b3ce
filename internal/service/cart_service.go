package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// CartService manages the per-buyer cart. It never mutates stock; the
// only authoritative stock check happens at checkout.
type CartService struct {
	store *repository.Store
	now   func() time.Time
}

func NewCartService(store *repository.Store) *CartService {
	return &CartService{store: store, now: time.Now}
}

// CartLine is one cart row joined with its live product.
type CartLine struct {
	Item     models.CartItem `json:"item"`
	Product  models.Product  `json:"product"`
	Subtotal float64         `json:"subtotal"`
}

// CartView is the cart with its lines and running totals.
type CartView struct {
	Cart       models.Cart `json:"cart"`
	Lines      []CartLine  `json:"lines"`
	TotalItems int         `json:"totalItems"`
	TotalPrice float64     `json:"totalPrice"`
}

func (s *CartService) requireBuyer(actor models.Actor, action string) error {
	if actor.Role != models.RoleBuyer {
		return &models.UnauthorizedError{Actor: actor, Action: action}
	}
	return nil
}

// AddItem adds quantity of a product to the actor's cart, merging with
// an existing line. The cumulative quantity is advisory-checked against
// live stock so buyers get early feedback.
func (s *CartService) AddItem(ctx context.Context, actor models.Actor, productID int64, quantity int) (*CartView, error) {
	if err := s.requireBuyer(actor, "cart.add"); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	product, err := s.store.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	if !product.IsActive {
		return nil, &models.NotFoundError{Entity: "product", ID: productID}
	}

	cart, err := s.store.Carts.GetOrCreateCart(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	total := quantity
	existing, err := s.store.Carts.GetCartItem(ctx, cart.ID, productID)
	switch {
	case err == nil:
		total += existing.Quantity
	case err != repository.ErrNotFound:
		return nil, err
	}
	if total > product.Stock {
		return nil, &models.InsufficientStockError{ProductID: productID}
	}

	now := s.now()
	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  total,
		Price:     product.Price,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Carts.SaveCartItem(ctx, item); err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

// UpdateItem sets the quantity of a cart line. Zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, actor models.Actor, productID int64, quantity int) (*CartView, error) {
	if err := s.requireBuyer(actor, "cart.update"); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	cart, err := s.store.Carts.GetOrCreateCart(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		if err := s.store.Carts.DeleteCartItem(ctx, cart.ID, productID); err != nil {
			return nil, notFound(err, "cart item", productID)
		}
		return s.Get(ctx, actor)
	}

	item, err := s.store.Carts.GetCartItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, notFound(err, "cart item", productID)
	}
	product, err := s.store.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	if quantity > product.Stock {
		return nil, &models.InsufficientStockError{ProductID: productID}
	}

	item.Quantity = quantity
	item.Price = product.Price
	item.UpdatedAt = s.now()
	if err := s.store.Carts.SaveCartItem(ctx, item); err != nil {
		return nil, err
	}
	return s.Get(ctx, actor)
}

func (s *CartService) RemoveItem(ctx context.Context, actor models.Actor, productID int64) (*CartView, error) {
	return s.UpdateItem(ctx, actor, productID, 0)
}

func (s *CartService) Clear(ctx context.Context, actor models.Actor) error {
	if err := s.requireBuyer(actor, "cart.clear"); err != nil {
		return err
	}
	cart, err := s.store.Carts.GetOrCreateCart(ctx, actor.ID)
	if err != nil {
		return err
	}
	return s.store.Carts.ClearCart(ctx, cart.ID)
}

// Get returns the actor's cart with lines and totals.
func (s *CartService) Get(ctx context.Context, actor models.Actor) (*CartView, error) {
	if err := s.requireBuyer(actor, "cart.get"); err != nil {
		return nil, err
	}
	cart, err := s.store.Carts.GetOrCreateCart(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Carts.CartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Cart: *cart, Lines: make([]CartLine, 0, len(items))}
	for _, it := range items {
		product, err := s.store.Products.GetProduct(ctx, it.ProductID)
		if err != nil {
			if err == repository.ErrNotFound {
				continue // product removed since it was added
			}
			return nil, err
		}
		subtotal := float64(it.Quantity) * product.Price
		view.Lines = append(view.Lines, CartLine{Item: it, Product: *product, Subtotal: subtotal})
		view.TotalItems += it.Quantity
		view.TotalPrice += subtotal
	}
	return view, nil
}

// notFound maps the repository sentinel onto the typed domain error,
// passing any other failure through untouched.
func notFound(err error, entity string, id int64) error {
	if err == repository.ErrNotFound {
		return &models.NotFoundError{Entity: entity, ID: id}
	}
	return err
}
