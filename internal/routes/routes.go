package routes

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/haloapotek/apotek-api/internal/handlers"
	"github.com/haloapotek/apotek-api/internal/middleware"
	"github.com/haloapotek/apotek-api/internal/models"
)

// CORSMiddleware allows the configured frontend origin to call the API
// with its Authorization header.
func CORSMiddleware() gin.HandlerFunc {
	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SetupRouter wires every endpoint. Groups are scoped by role: public,
// any authenticated user, buyer, staff (cashier/admin), pharmacy
// (pharmacist/admin), driver, and admin.
func SetupRouter(h *handlers.Handlers, db *sql.DB) *gin.Engine {
	router := gin.Default()
	router.Use(CORSMiddleware())
	router.Static("/uploads", "./uploads")

	v1 := router.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong!"})
		})

		// --- Public ---
		v1.POST("/auth/register", h.Register)
		v1.POST("/auth/login", h.Login)
		v1.GET("/products", h.ListProducts)
		v1.GET("/products/:id", h.GetProduct)
		v1.GET("/track/:trackingNumber", h.TrackDelivery)

		// --- Any authenticated user ---
		auth := v1.Group("/")
		auth.Use(middleware.AuthMiddleware(db))
		{
			auth.GET("/me", h.Me)
			auth.GET("/dashboard", h.Dashboard)
			auth.POST("/upload", h.UploadFile)

			auth.GET("/orders", h.ListOrders)
			auth.GET("/orders/:id", h.GetOrder)
			auth.GET("/orders/:id/invoice", h.OrderInvoice)
			auth.GET("/orders/:id/payments", h.OrderPayments)
			auth.POST("/orders/:id/cancel", h.CancelOrder)
			auth.GET("/payments", h.ListPayments)
			auth.GET("/prescriptions", h.ListPrescriptions)
			auth.GET("/prescriptions/:id", h.GetPrescription)
			auth.GET("/deliveries", h.ListDeliveries)
			auth.GET("/deliveries/:id", h.GetDelivery)
		}

		// --- Buyer ---
		buyer := v1.Group("/")
		buyer.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(models.RoleBuyer))
		{
			buyer.GET("/cart", h.GetCart)
			buyer.DELETE("/cart", h.ClearCart)
			buyer.POST("/cart/items", h.AddToCart)
			buyer.PUT("/cart/items/:productId", h.UpdateCartItem)
			buyer.DELETE("/cart/items/:productId", h.RemoveCartItem)

			buyer.POST("/orders", h.Checkout)
			buyer.POST("/orders/:id/complete", h.CompleteOrder)
			buyer.POST("/orders/:id/payments", h.SubmitPaymentProof)
			buyer.POST("/orders/:id/prescriptions", h.UploadPrescription)
		}

		// --- Staff (cashier + admin) ---
		staff := v1.Group("/staff")
		staff.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(models.RoleCashier, models.RoleAdmin))
		{
			staff.POST("/orders/:id/process", h.ProcessOrder)
			staff.POST("/orders/:id/assign", h.AssignDriver)
			staff.POST("/payments/:id/verify", h.VerifyPayment)
		}

		// --- Pharmacy (pharmacist + admin) ---
		pharmacy := v1.Group("/pharmacy")
		pharmacy.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(models.RolePharmacist, models.RoleAdmin))
		{
			pharmacy.POST("/prescriptions/:id/verify", h.VerifyPrescription)
		}

		// --- Driver ---
		driver := v1.Group("/driver")
		driver.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(models.RoleDriver))
		{
			driver.GET("/deliveries/available", h.AvailableDeliveries)
			driver.POST("/deliveries/:id/accept", h.AcceptDelivery)
			driver.POST("/deliveries/:id/status", h.UpdateDeliveryStatus)
			driver.POST("/deliveries/:id/evidence", h.UploadDeliveryEvidence)
			driver.POST("/deliveries/:id/location", h.UpdateDeliveryLocation)
		}

		// --- Admin ---
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(db), middleware.RequireRoles(models.RoleAdmin))
		{
			admin.POST("/users", h.CreateStaff)
			admin.PATCH("/users/:id/active", h.SetUserActive)
			admin.POST("/products", h.CreateProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.POST("/products/:id/restock", h.RestockProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
		}
	}

	return router
}
