package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role identifies what an authenticated actor is allowed to do.
// The identity layer resolves it from the users table; the services
// only ever see it through an Actor.
type Role string

const (
	RoleBuyer      Role = "buyer"
	RoleCashier    Role = "cashier"
	RolePharmacist Role = "pharmacist"
	RoleDriver     Role = "driver"
	RoleAdmin      Role = "admin"
)

// Actor is the authenticated caller of a core operation. Every
// state-changing service method takes one explicitly instead of
// reading ambient session state.
type Actor struct {
	ID   int64
	Role Role
}

// User is the model for the 'users' table.
type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Phone        string `json:"phone" db:"phone"`
	Address      string `json:"address" db:"address"`
	Role         Role   `json:"role" db:"role"`
	IsActive     bool   `json:"isActive" db:"is_active"`

	// Driver profile fields (Pointers = Clean JSON)
	DriverLicense *string `json:"driverLicense,omitempty" db:"driver_license"`
	VehicleNumber *string `json:"vehicleNumber,omitempty" db:"vehicle_number"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Password Helper (Standard)
type Password struct {
	Plaintext *string
	Hash      string
}

func (p *Password) Set(plaintextPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.Hash = string(hash)
	p.Plaintext = &plaintextPassword
	return nil
}

func (p *Password) Matches(plaintextPassword string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(plaintextPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
