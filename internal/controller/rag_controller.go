package controller

import (
	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/serverutils"
	"lus-laboris-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRagController interface {
	RegisterRoutes(r fiber.Router)
	AskQuestion(ctx *fiber.Ctx) error
}

type ragController struct {
	ragService service.IRagService
	tracker    monitoring.ISessionTracker
	rateLimit  fiber.Handler
}

func NewRagController(ragService service.IRagService, tracker monitoring.ISessionTracker, rateLimit fiber.Handler) IRagController {
	return &ragController{
		ragService: ragService,
		tracker:    tracker,
		rateLimit:  rateLimit,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/questions")
	h.Use(c.rateLimit)
	h.Post("ask", c.AskQuestion)
}

func (c *ragController) AskQuestion(ctx *fiber.Ctx) error {
	var req dto.AskQuestionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// 1. Reuse the caller's session or open one for this question
	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = c.tracker.CreateSession(ctx.Context(), "anonymous")
		defer c.tracker.EndSession(ctx.Context(), sessionID)
	}

	// 2. Run the pipeline. The response is flat and always HTTP 200,
	// Success tells outcomes apart.
	res := c.ragService.AnswerQuestion(ctx.Context(), req.Question, sessionID)

	return ctx.JSON(res)
}
