package httpapi

import (
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func (s *HTTPServer) routes() {
	s.app.Get("/", s.health)

	api := s.app.Group("/api")

	authGroup := api.Group("/auth")
	if s.opts.RateLimitRPM > 0 {
		authGroup.Use(limiter.New(limiter.Config{
			Max:        s.opts.RateLimitRPM,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return &common.RateLimitedError{RetryAfter: time.Minute}
			},
		}))
	}
	authGroup.Post("/register", s.register)
	authGroup.Post("/verify-otp", s.verifyOTP)
	authGroup.Post("/login", s.login)
	authGroup.Post("/send-otp", s.sendLoginOTP)
	authGroup.Post("/resend-otp", s.sendLoginOTP)
	authGroup.Post("/verify-otp-login", s.verifyLoginOTP)
	authGroup.Post("/forgot-password", s.forgotPassword)
	authGroup.Post("/reset-password", s.resetPassword)
	authGroup.Post("/refresh", s.refresh)
	authGroup.Post("/change-password", s.authGate, s.changePassword)
	authGroup.Get("/me", s.authGate, s.me)

	service := api.Group("/service", s.authGate)
	service.Post("/", s.createRequest(models.CategoryService))
	service.Get("/me", s.listMine(models.CategoryService))

	laptops := api.Group("/laptops", s.authGate)
	laptops.Post("/", s.createRequest(models.CategoryLaptop))
	laptops.Get("/me", s.listMine(models.CategoryLaptop))
	laptops.Post("/images", s.presignImage)

	admin := api.Group("/admin", s.authGate, s.requireAdmin)
	admin.Get("/service", s.listAll(models.CategoryService))
	admin.Patch("/service/:id", s.transition(models.CategoryService))
	admin.Get("/laptops", s.listAll(models.CategoryLaptop))
	admin.Patch("/laptops/:id", s.transition(models.CategoryLaptop))
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":     "LapLink API is running",
		"environment": s.opts.Environment,
	})
}
