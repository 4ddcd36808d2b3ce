package service

import (
	"context"
	"errors"
	"testing"

	"github.com/haloapotek/apotek-api/internal/models"
)

func TestRegisterBuyer(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.svc.Users.Register(context.Background(), RegisterInput{
		Name:     "Siti",
		Email:    "siti@example.com",
		Password: "rahasia-123",
		Role:     models.RoleBuyer,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == 0 {
		t.Error("ID not assigned")
	}
	if !u.IsActive {
		t.Error("new account should be active")
	}
	if u.PasswordHash == "rahasia-123" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterStaffRoleDenied(t *testing.T) {
	env := newTestEnv(t)

	for _, role := range []models.Role{models.RoleCashier, models.RolePharmacist, models.RoleAdmin} {
		_, err := env.svc.Users.Register(context.Background(), RegisterInput{
			Name:     "Mallory",
			Email:    "mallory@example.com",
			Password: "rahasia-123",
			Role:     role,
		})
		var validation *models.ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("role %s: err = %v, want ValidationError", role, err)
		}
	}
}

func TestRegisterDriverRequiresLicense(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Users.Register(context.Background(), RegisterInput{
		Name:     "Joko",
		Email:    "joko@example.com",
		Password: "rahasia-123",
		Role:     models.RoleDriver,
	})
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	license := "SIM-C-555"
	vehicle := "D 5555 XY"
	u, err := env.svc.Users.Register(context.Background(), RegisterInput{
		Name:          "Joko",
		Email:         "joko@example.com",
		Password:      "rahasia-123",
		Role:          models.RoleDriver,
		DriverLicense: &license,
		VehicleNumber: &vehicle,
	})
	if err != nil {
		t.Fatalf("register driver: %v", err)
	}
	if u.DriverLicense == nil || *u.DriverLicense != license {
		t.Error("license not stored")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)

	in := RegisterInput{
		Name:     "Siti",
		Email:    "siti@example.com",
		Password: "rahasia-123",
		Role:     models.RoleBuyer,
	}
	if _, err := env.svc.Users.Register(context.Background(), in); err != nil {
		t.Fatal(err)
	}
	_, err := env.svc.Users.Register(context.Background(), in)
	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.Users.Register(ctx, RegisterInput{
		Name:     "Siti",
		Email:    "siti@example.com",
		Password: "rahasia-123",
		Role:     models.RoleBuyer,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := env.svc.Users.Authenticate(ctx, "siti@example.com", "rahasia-123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("wrong user returned")
	}

	if _, err := env.svc.Users.Authenticate(ctx, "siti@example.com", "salah"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.Users.Authenticate(ctx, "nobody@example.com", "rahasia-123"); err != ErrInvalidCredentials {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.Users.Register(ctx, RegisterInput{
		Name:     "Siti",
		Email:    "siti@example.com",
		Password: "rahasia-123",
		Role:     models.RoleBuyer,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Users.SetActive(ctx, env.admin, u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := env.svc.Users.Authenticate(ctx, "siti@example.com", "rahasia-123"); err != ErrInvalidCredentials {
		t.Errorf("deactivated: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestSetActiveGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Users.SetActive(ctx, env.cashier, env.buyer.ID, false)
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Errorf("non-admin: err = %v, want UnauthorizedError", err)
	}

	_, err = env.svc.Users.SetActive(ctx, env.admin, env.admin.ID, false)
	var validation *models.ValidationError
	if !errors.As(err, &validation) {
		t.Errorf("self-deactivation: err = %v, want ValidationError", err)
	}
}

func TestCreateStaffIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := RegisterInput{
		Name:     "Dewi",
		Email:    "dewi.staff@example.com",
		Password: "rahasia-123",
		Role:     models.RoleCashier,
	}
	_, err := env.svc.Users.CreateStaff(ctx, env.cashier, in)
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedError", err)
	}

	u, err := env.svc.Users.CreateStaff(ctx, env.admin, in)
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if u.Role != models.RoleCashier {
		t.Errorf("role = %s, want cashier", u.Role)
	}
}

func TestGetUserScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Users.Get(ctx, env.buyer, env.buyer.ID); err != nil {
		t.Errorf("self lookup: %v", err)
	}
	if _, err := env.svc.Users.Get(ctx, env.admin, env.buyer.ID); err != nil {
		t.Errorf("admin lookup: %v", err)
	}
	_, err := env.svc.Users.Get(ctx, env.buyer, env.driver.ID)
	var unauthorized *models.UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Errorf("foreign lookup: err = %v, want UnauthorizedError", err)
	}
}
