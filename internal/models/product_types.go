package models

import "time"

// Product is the model for the 'products' table.
// Stock is only ever mutated through the repository's Reserve/Release
// pair; nothing else writes the column.
type Product struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Slug        string  `json:"slug" db:"slug"`
	Description string  `json:"description" db:"description"`
	Price       float64 `json:"price" db:"price"`
	Stock       int     `json:"stock" db:"stock"`
	Category    string  `json:"category" db:"category"`

	// Type distinguishes over-the-counter goods from restricted ones,
	// e.g. obat_bebas, obat_keras, alat_kesehatan.
	Type                 string `json:"type" db:"type"`
	RequiresPrescription bool   `json:"requiresPrescription" db:"requires_prescription"`
	IsActive             bool   `json:"isActive" db:"is_active"`

	// Image is an opaque reference handed out by the upload endpoint.
	Image *string `json:"image,omitempty" db:"image"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
