package service

import (
	"context"
	"time"

	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
)

// UserService handles registration and credential checks. Tokens are
// minted in the handler layer; the service only deals in users.
type UserService struct {
	store *repository.Store
	now   func() time.Time
}

func NewUserService(store *repository.Store) *UserService {
	return &UserService{store: store, now: time.Now}
}

// RegisterInput is a self-service registration. Buyers and drivers may
// register themselves; staff accounts are created by an admin.
type RegisterInput struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Phone    string      `json:"phone"`
	Address  string      `json:"address"`
	Role     models.Role `json:"role" binding:"required"`

	// Required when Role is driver
	DriverLicense *string `json:"driverLicense"`
	VehicleNumber *string `json:"vehicleNumber"`
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role != models.RoleBuyer && in.Role != models.RoleDriver {
		return nil, &models.ValidationError{Field: "role", Reason: "self-registration is limited to buyer and driver"}
	}
	return s.create(ctx, in)
}

// CreateStaff registers cashier, pharmacist, driver, or admin accounts.
// Admin only.
func (s *UserService) CreateStaff(ctx context.Context, actor models.Actor, in RegisterInput) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "user.create"}
	}
	switch in.Role {
	case models.RoleCashier, models.RolePharmacist, models.RoleDriver, models.RoleAdmin:
	default:
		return nil, &models.ValidationError{Field: "role", Reason: "unknown role"}
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Role == models.RoleDriver {
		if in.DriverLicense == nil || *in.DriverLicense == "" {
			return nil, &models.ValidationError{Field: "driverLicense", Reason: "required for drivers"}
		}
		if in.VehicleNumber == nil || *in.VehicleNumber == "" {
			return nil, &models.ValidationError{Field: "vehicleNumber", Reason: "required for drivers"}
		}
	}

	var pw models.Password
	if err := pw.Set(in.Password); err != nil {
		return nil, err
	}

	now := s.now()
	u := &models.User{
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  pw.Hash,
		Phone:         in.Phone,
		Address:       in.Address,
		Role:          in.Role,
		IsActive:      true,
		DriverLicense: in.DriverLicense,
		VehicleNumber: in.VehicleNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Users.CreateUser(ctx, u); err != nil {
		if err == repository.ErrDuplicate {
			return nil, &models.ConflictError{Entity: "user", ID: 0}
		}
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials and returns the user. Deactivated
// accounts cannot log in.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	pw := models.Password{Hash: u.PasswordHash}
	ok, err := pw.Matches(password)
	if err != nil {
		return nil, err
	}
	if !ok || !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SetActive activates or deactivates an account. Admin only. The auth
// middleware checks is_active on every request, so deactivation takes
// effect immediately.
func (s *UserService) SetActive(ctx context.Context, actor models.Actor, userID int64, active bool) (*models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "user.setActive"}
	}
	if actor.ID == userID && !active {
		return nil, &models.ValidationError{Field: "isActive", Reason: "cannot deactivate your own account"}
	}
	u, err := s.store.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	if err := s.store.Users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns a user's profile: self, or any user for an admin.
func (s *UserService) Get(ctx context.Context, actor models.Actor, userID int64) (*models.User, error) {
	if actor.ID != userID && actor.Role != models.RoleAdmin {
		return nil, &models.UnauthorizedError{Actor: actor, Action: "user.view"}
	}
	u, err := s.store.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return u, nil
}
