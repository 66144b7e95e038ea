package controller

import (
	"lus-laboris-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IStatusController interface {
	RegisterRoutes(r fiber.Router)
	Root(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type statusController struct {
	statusService service.IStatusService
	optionalAuth  fiber.Handler
}

func NewStatusController(statusService service.IStatusService, optionalAuth fiber.Handler) IStatusController {
	return &statusController{
		statusService: statusService,
		optionalAuth:  optionalAuth,
	}
}

func (c *statusController) RegisterRoutes(r fiber.Router) {
	r.Get("health", c.Health)
	r.Get("status", c.optionalAuth, c.Status)
}

func (c *statusController) Root(ctx *fiber.Ctx) error {
	return ctx.JSON(c.statusService.Root())
}

func (c *statusController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(c.statusService.Health(ctx.Context()))
}

// Status reports dependency detail. Anonymous callers only see per-component
// status fields, a valid token unlocks the full view.
func (c *statusController) Status(ctx *fiber.Ctx) error {
	authenticated, _ := ctx.Locals("authenticated").(bool)
	return ctx.JSON(c.statusService.Status(ctx.Context(), authenticated))
}
