package app

import (
	"fmt"
	"log"
	"strings"

	"review-pulse/internal/config"
	"review-pulse/internal/delivery/http/middleware"
	"review-pulse/internal/delivery/http/routes"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container

	stopSweeper chan struct{}
}

// Bootstrap builds the container, mounts the HTTP surface, and starts
// the background machinery. The returned cleanup stops everything in
// reverse order.
func Bootstrap(cfg config.Config) (*App, func() error, error) {
	logger := log.Default()

	c, err := NewContainer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	f := fiber.New(fiber.Config{
		AppName: cfg.App.AppName,
	})

	errMw := middleware.NewErrorMiddleware()
	accessMw := middleware.NewAccessLogMiddleware(logger)
	f.Use(errMw.Middleware())
	f.Use(accessMw.Middleware())

	routes.NewRegistry(c.Deps).Register(f)

	go c.WSHub.Run()

	stopSweeper := make(chan struct{})
	c.Limiter.StartSweeper(stopSweeper)

	if err := c.Scheduler.Start(cfg.Scraper.ScheduleSpec); err != nil {
		close(stopSweeper)
		_ = c.Close()
		return nil, nil, err
	}

	app := &App{Fiber: f, Container: c, stopSweeper: stopSweeper}

	cleanup := func() error {
		c.Scheduler.Stop()
		c.Coordinator.Wait()
		close(stopSweeper)
		return c.Close()
	}
	return app, cleanup, nil
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
