package service

import (
	"context"
	"time"

	"github.com/gosimple/slug"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// ProductService is the catalog: admin CRUD plus the public listing.
type ProductService struct {
	store *repository.Store
	now   func() time.Time
}

func NewProductService(store *repository.Store) *ProductService {
	return &ProductService{store: store, now: time.Now}
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name                 string  `json:"name" binding:"required"`
	Description          string  `json:"description"`
	Price                float64 `json:"price" binding:"required,gt=0"`
	Stock                int     `json:"stock" binding:"gte=0"`
	Category             string  `json:"category" binding:"required"`
	Type                 string  `json:"type" binding:"required"`
	RequiresPrescription bool    `json:"requiresPrescription"`
	IsActive             bool    `json:"isActive"`
	Image                *string `json:"image"`
}

func (s *ProductService) Create(ctx context.Context, actor models.Actor, in ProductInput) (*models.Product, error) {
	if actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "product.create"}
	}
	if in.Price <= 0 {
		return nil, &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if in.Stock < 0 {
		return nil, &models.ValidationError{Field: "stock", Reason: "must not be negative"}
	}

	now := s.now()
	p := &models.Product{
		Name:                 in.Name,
		Slug:                 slug.Make(in.Name),
		Description:          in.Description,
		Price:                in.Price,
		Stock:                in.Stock,
		Category:             in.Category,
		Type:                 in.Type,
		RequiresPrescription: in.RequiresPrescription,
		IsActive:             in.IsActive,
		Image:                in.Image,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	err := s.store.Products.CreateProduct(ctx, p)
	if err == repository.ErrDuplicate {
		// slug collision, disambiguate and retry once
		p.Slug = p.Slug + "-" + numberSuffix()
		err = s.store.Products.CreateProduct(ctx, p)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update rewrites the catalog fields of a product. Stock is not
// touched here; it only moves through the reservation ledger.
func (s *ProductService) Update(ctx context.Context, actor models.Actor, productID int64, in ProductInput) (*models.Product, error) {
	if actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "product.update"}
	}
	if in.Price <= 0 {
		return nil, &models.ValidationError{Field: "price", Reason: "must be positive"}
	}

	p, err := s.store.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	if in.Name != p.Name {
		p.Slug = slug.Make(in.Name)
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Category = in.Category
	p.Type = in.Type
	p.RequiresPrescription = in.RequiresPrescription
	p.IsActive = in.IsActive
	if in.Image != nil {
		p.Image = in.Image
	}
	p.UpdatedAt = s.now()
	if err := s.store.Products.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Restock adds stock outside the order flow, e.g. a goods receipt.
func (s *ProductService) Restock(ctx context.Context, actor models.Actor, productID int64, quantity int) (*models.Product, error) {
	if actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "product.restock"}
	}
	if quantity <= 0 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if err := s.store.Products.Release(ctx, productID, quantity); err != nil {
		return nil, notFound(err, "product", productID)
	}
	p, err := s.store.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	return p, nil
}

// Delete removes a product from the catalog. Products referenced by
// existing orders should be deactivated through Update instead.
func (s *ProductService) Delete(ctx context.Context, actor models.Actor, productID int64) error {
	if actor.Role != models.RoleAdmin {
		return &models.UnauthorizedError{Actor: actor, Action: "product.delete"}
	}
	if err := s.store.Products.DeleteProduct(ctx, productID); err != nil {
		return notFound(err, "product", productID)
	}
	return nil
}

// Get returns one product. Inactive products are hidden from buyers.
func (s *ProductService) Get(ctx context.Context, actor models.Actor, productID int64) (*models.Product, error) {
	p, err := s.store.Products.GetProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	if !p.IsActive && actor.Role != models.RoleAdmin && !isStaff(actor.Role) {
		return nil, &models.NotFoundError{Entity: "product", ID: productID}
	}
	return p, nil
}

// ListInput narrows the public catalog listing.
type ListInput struct {
	Search               string
	Category             string
	RequiresPrescription *bool
	IncludeInactive      bool
}

// List returns the catalog. Only staff may see inactive products.
func (s *ProductService) List(ctx context.Context, actor models.Actor, in ListInput) ([]models.Product, error) {
	f := repository.ProductFilter{
		Search:               in.Search,
		Category:             in.Category,
		RequiresPrescription: in.RequiresPrescription,
		ActiveOnly:           true,
	}
	if in.IncludeInactive && (actor.Role == models.RoleAdmin || isStaff(actor.Role)) {
		f.ActiveOnly = false
	}
	return s.store.Products.ListProducts(ctx, f)
}
