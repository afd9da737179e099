package v1

import (
	"review-pulse/internal/delivery/http/handler"
	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/ws"

	"github.com/gofiber/fiber/v3"
)

// Deps carries the wired handlers and middleware into route
// registration. The container owns construction.
type Deps struct {
	Auth    *middleware.AuthMiddleware
	Limiter *middleware.RateLimiter

	Health   *handler.HealthHandler
	Scrape   *handler.ScrapeHandler
	Review   *handler.ReviewHandler
	Location *handler.LocationHandler
	Chatbot  *handler.ChatbotHandler
	Status   *ws.Handler
}

func Register(r fiber.Router, d Deps) {
	if r == nil {
		return
	}

	protected := r.Group("", d.Auth.Middleware(), d.Limiter.Limit(middleware.ClassGeneral))

	if d.Scrape != nil {
		d.Scrape.RegisterRoutes(protected.Group("/scraper"), d.Limiter)
	}
	if d.Review != nil {
		d.Review.RegisterRoutes(protected.Group("/reviews"), d.Limiter)
	}
	if d.Location != nil {
		d.Location.RegisterRoutes(protected.Group("/locations"), d.Limiter)
	}
	if d.Chatbot != nil {
		d.Chatbot.RegisterRoutes(protected.Group("/chatbot"), d.Limiter)
	}
	if d.Status != nil {
		protected.Get("/ws/status", d.Status.HandleStatusWS)
	}
}
