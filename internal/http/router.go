package api

import (
	"log"
	stdhttp "net/http"

	intconfig "tourbackend/internal/config"
	"tourbackend/internal/domain"
	h "tourbackend/internal/http/handlers"
	"tourbackend/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func NewRouter(env intconfig.Env, hs h.Handlers) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		gin.Recovery(),
		middleware.CORS(env.CORSOrigins),
		middleware.Timeout(env.RequestTimeout),
	)

	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("warning: failed to set trusted proxies: %v", err)
	}

	r.OPTIONS("/*path", func(c *gin.Context) { c.AbortWithStatus(stdhttp.StatusNoContent) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"success": false,
			"error":   "route not found",
			"code":    "not_found",
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	})

	r.GET("/health", h.Health)

	authCfg := middleware.AuthConfig{
		JWTSecret:      env.JWTSecret,
		AnonKey:        env.AnonKey,
		ServiceRoleKey: env.ServiceRoleKey,
	}
	api := r.Group("", middleware.Authenticate(authCfg))
	admin := middleware.RequireRole(domain.RoleServiceRole)
	{
		api.GET("/routes", admin, h.Routes)

		// Diagnostics
		api.GET("/db-check", hs.DBCheck)
		api.GET("/db-diagnostics", hs.DBDiagnostics)
		api.POST("/db-cleanup", admin, hs.DBCleanup)
		api.GET("/test-pdf", hs.TestPDF)

		// Bookings
		bookings := api.Group("/bookings")
		bookings.POST("", hs.CreateBooking)
		bookings.GET("", admin, hs.ListBookings)
		bookings.GET("/:id", hs.GetBooking)
		bookings.GET("/:id/pdf", hs.GetBookingPDF)
		bookings.POST("/:id/resend-email", hs.ResendBookingEmail)

		// Scanner
		api.POST("/verify-qr", hs.VerifyQR)
		api.POST("/checkin", middleware.RequireRole(domain.RoleAnon, domain.RoleDriver), hs.CheckIn)

		// Drivers
		drivers := api.Group("/drivers")
		drivers.POST("/register", admin, hs.RegisterDriver)
		drivers.POST("/login", hs.LoginDriver)
		drivers.GET("", admin, hs.ListDrivers)
		drivers.POST("/:id/deactivate", admin, hs.DeactivateDriver)

		// Pricing
		api.GET("/pricing", hs.GetPricing)
		api.PUT("/pricing", admin, hs.UpdatePricing)
	}

	h.SetRouter(r)
	return r
}
