package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/middleware"
	"github.com/haloapotek/apotek-api/internal/models"
	"github.com/haloapotek/apotek-api/internal/repository"
	"github.com/haloapotek/apotek-api/internal/service"
)

// testAPI is a router over a memory store with a stub auth layer: the
// request's actor is injected directly instead of going through JWT.
type testAPI struct {
	router *gin.Engine
	store  *repository.Store
	svc    *service.Services
	actor  models.Actor
}

// asActor injects the configured actor the way AuthMiddleware would
// after validating a token.
func (a *testAPI) asActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.actor.ID != 0 {
			c.Set(middleware.ContextUserID, a.actor.ID)
			c.Set(middleware.ContextUserRole, a.actor.Role)
		}
		c.Next()
	}
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemory()
	svc := service.New(store)
	h := New(svc)

	api := &testAPI{store: store, svc: svc}
	router := gin.New()
	v1 := router.Group("/v1")
	{
		v1.POST("/auth/register", h.Register)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:id", h.GetProduct)
		v1.GET("/track/:trackingNumber", h.TrackDelivery)

		auth := v1.Group("/", api.asActor())
		{
			auth.GET("/orders/:id", h.GetOrder)
			auth.POST("/orders/:id/cancel", h.CancelOrder)
		}

		buyer := v1.Group("/", api.asActor(), middleware.RequireRoles(models.RoleBuyer))
		{
			buyer.POST("/cart/items", h.AddToCart)
			buyer.POST("/orders", h.Checkout)
		}

		staff := v1.Group("/staff", api.asActor(), middleware.RequireRoles(models.RoleCashier, models.RoleAdmin))
		{
			staff.POST("/orders/:id/process", h.ProcessOrder)
		}

		driver := v1.Group("/driver", api.asActor(), middleware.RequireRoles(models.RoleDriver))
		{
			driver.POST("/deliveries/:id/location", h.UpdateDeliveryLocation)
		}
	}
	api.router = router
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seedBuyer(t *testing.T) models.Actor {
	t.Helper()
	u, err := a.svc.Users.Register(context.Background(), service.RegisterInput{
		Name:     "Siti",
		Email:    "siti@example.com",
		Password: "rahasia-123",
		Role:     models.RoleBuyer,
	})
	if err != nil {
		t.Fatal(err)
	}
	return models.Actor{ID: u.ID, Role: u.Role}
}

func (a *testAPI) seedProduct(t *testing.T, name string, price float64, stock int) *models.Product {
	t.Helper()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Product{
		Name: name, Slug: name, Price: price, Stock: stock,
		Category: "obat", Type: "obat_bebas", IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := a.store.Products.CreateProduct(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/v1/auth/register", gin.H{
		"name":     "Siti",
		"email":    "siti@example.com",
		"password": "rahasia-123",
		"role":     "buyer",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Error("no token issued")
	}
	if resp.User.PasswordHash != "" {
		t.Error("password hash leaked in response")
	}

	// duplicate email maps to 409
	w = api.do(t, http.MethodPost, "/v1/auth/register", gin.H{
		"name":     "Siti",
		"email":    "siti@example.com",
		"password": "rahasia-123",
		"role":     "buyer",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
}

func TestProductEndpointsArePublic(t *testing.T) {
	api := newTestAPI(t)
	p := api.seedProduct(t, "Vitamin C", 15000, 5)

	w := api.do(t, http.MethodGet, "/v1/products", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	w = api.do(t, http.MethodGet, "/v1/products/"+itoa(p.ID), nil)
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d", w.Code)
	}

	w = api.do(t, http.MethodGet, "/v1/products/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing product status = %d, want 404", w.Code)
	}

	w = api.do(t, http.MethodGet, "/v1/products/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("garbage id status = %d, want 400", w.Code)
	}
}

func TestCheckoutEndpoint(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.seedBuyer(t)
	p := api.seedProduct(t, "Vitamin C", 15000, 5)
	api.actor = buyer

	// empty cart checkout is a 400
	w := api.do(t, http.MethodPost, "/v1/orders", gin.H{
		"shippingAddress": "Jl. Melati 5, Bandung",
		"paymentMethod":   "transfer",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty cart status = %d, body %s", w.Code, w.Body.String())
	}

	w = api.do(t, http.MethodPost, "/v1/cart/items", gin.H{
		"productId": p.ID,
		"quantity":  2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add to cart status = %d, body %s", w.Code, w.Body.String())
	}

	// asking for more than stock is a 409
	w = api.do(t, http.MethodPost, "/v1/cart/items", gin.H{
		"productId": p.ID,
		"quantity":  10,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("over-stock add status = %d, want 409", w.Code)
	}

	w = api.do(t, http.MethodPost, "/v1/orders", gin.H{
		"shippingAddress": "Jl. Melati 5, Bandung",
		"paymentMethod":   "transfer",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Order models.Order `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Order.TotalAmount != 30000 {
		t.Errorf("total = %v, want 30000", resp.Order.TotalAmount)
	}

	// a second buyer cannot see the order
	other, err := api.svc.Users.Register(context.Background(), service.RegisterInput{
		Name: "Sari", Email: "sari@example.com", Password: "rahasia-123", Role: models.RoleBuyer,
	})
	if err != nil {
		t.Fatal(err)
	}
	api.actor = models.Actor{ID: other.ID, Role: other.Role}
	w = api.do(t, http.MethodGet, "/v1/orders/"+itoa(resp.Order.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign order status = %d, want 403", w.Code)
	}
}

func TestRoleGroupMembership(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.seedBuyer(t)
	api.actor = buyer

	// a buyer hitting a staff route is rejected by the role gate
	w := api.do(t, http.MethodPost, "/v1/staff/orders/1/process", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	// unauthenticated cart access is rejected too
	api.actor = models.Actor{}
	w = api.do(t, http.MethodPost, "/v1/cart/items", gin.H{"productId": 1, "quantity": 1})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}
}

func TestUpdateLocationAcceptsZeroCoordinates(t *testing.T) {
	api := newTestAPI(t)
	license := "SIM-C-123"
	vehicle := "D 1234 AB"
	u, err := api.svc.Users.Register(context.Background(), service.RegisterInput{
		Name: "Joko", Email: "joko@example.com", Password: "rahasia-123",
		Role: models.RoleDriver, DriverLicense: &license, VehicleNumber: &vehicle,
	})
	if err != nil {
		t.Fatal(err)
	}
	api.actor = models.Actor{ID: u.ID, Role: u.Role}

	// latitude 0 is the equator, not a missing field; the request must
	// clear binding and reach the service (404, the delivery is absent)
	w := api.do(t, http.MethodPost, "/v1/driver/deliveries/1/location", gin.H{
		"latitude":  0.0,
		"longitude": 106.8,
	})
	if w.Code == http.StatusBadRequest {
		t.Fatalf("zero latitude rejected at binding: body %s", w.Body.String())
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a missing delivery", w.Code)
	}

	// out-of-range coordinates still fail, from the service
	w = api.do(t, http.MethodPost, "/v1/driver/deliveries/1/location", gin.H{
		"latitude":  91.0,
		"longitude": 0.0,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("lat 91 status = %d, want 400", w.Code)
	}

	// an absent field is still a binding error
	w = api.do(t, http.MethodPost, "/v1/driver/deliveries/1/location", gin.H{
		"longitude": 106.8,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing latitude status = %d, want 400", w.Code)
	}
}

func TestTrackEndpointIsPublic(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/v1/track/TRK-NOPE", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
