package controller

import (
	"fmt"

	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/pkg/serverutils"
	"lus-laboris-api/internal/service"
	"lus-laboris-api/pkg/vectorstore"

	"github.com/gofiber/fiber/v2"
)

type IVectorstoreController interface {
	RegisterRoutes(r fiber.Router)
	LoadLocal(ctx *fiber.Ctx) error
	LoadRemote(ctx *fiber.Ctx) error
	ListJobs(ctx *fiber.Ctx) error
	ShowJob(ctx *fiber.Ctx) error
	ListCollections(ctx *fiber.Ctx) error
	DeleteCollection(ctx *fiber.Ctx) error
}

type vectorstoreController struct {
	ingestService service.IIngestService
	jobService    service.IJobService
	store         vectorstore.VectorStore
	auth          fiber.Handler
}

func NewVectorstoreController(
	ingestService service.IIngestService,
	jobService service.IJobService,
	store vectorstore.VectorStore,
	auth fiber.Handler,
) IVectorstoreController {
	return &vectorstoreController{
		ingestService: ingestService,
		jobService:    jobService,
		store:         store,
		auth:          auth,
	}
}

func (c *vectorstoreController) RegisterRoutes(r fiber.Router) {
	d := r.Group("/data")
	d.Use(c.auth)
	d.Post("load-to-vectorstore", c.LoadLocal)
	d.Post("load-to-vectorstore-remote", c.LoadRemote)
	d.Get("jobs", c.ListJobs)
	d.Get("jobs/:job_id", c.ShowJob)

	v := r.Group("/vectorstore")
	v.Use(c.auth)
	v.Get("collections", c.ListCollections)
	v.Delete("collections/:name", c.DeleteCollection)
}

func (c *vectorstoreController) LoadLocal(ctx *fiber.Ctx) error {
	var req dto.LoadLocalRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	jobID := c.ingestService.SubmitLocalLoad(&req, usernameFromLocals(ctx))
	job, _ := c.jobService.Get(jobID)

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse(
		"Ingestion job queued",
		dto.JobAcceptedResponse{JobId: jobID, Status: job.Status},
	))
}

func (c *vectorstoreController) LoadRemote(ctx *fiber.Ctx) error {
	var req dto.LoadRemoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	jobID := c.ingestService.SubmitRemoteLoad(&req, usernameFromLocals(ctx))
	job, _ := c.jobService.Get(jobID)

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse(
		"Ingestion job queued",
		dto.JobAcceptedResponse{JobId: jobID, Status: job.Status},
	))
}

func (c *vectorstoreController) ListJobs(ctx *fiber.Ctx) error {
	jobs := c.jobService.List()

	return ctx.JSON(serverutils.SuccessResponse(
		"Jobs retrieved successfully",
		dto.JobListResponse{Jobs: jobs, Total: len(jobs)},
	))
}

func (c *vectorstoreController) ShowJob(ctx *fiber.Ctx) error {
	jobID := ctx.Params("job_id")

	job, ok := c.jobService.Get(jobID)
	if !ok {
		return ctx.Status(fiber.StatusNotFound).
			JSON(serverutils.ErrorResponse(fiber.StatusNotFound, fmt.Sprintf("Job '%s' not found", jobID)))
	}

	return ctx.JSON(serverutils.SuccessResponse("Job retrieved successfully", job))
}

func (c *vectorstoreController) ListCollections(ctx *fiber.Ctx) error {
	names, err := c.store.ListCollections(ctx.Context())
	if err != nil {
		return err
	}

	collections := make([]vectorstore.CollectionInfo, 0, len(names))
	for _, name := range names {
		info, err := c.store.Describe(ctx.Context(), name)
		if err != nil {
			collections = append(collections, vectorstore.CollectionInfo{Name: name})
			continue
		}
		collections = append(collections, *info)
	}

	return ctx.JSON(serverutils.SuccessResponse(
		"Collections retrieved successfully",
		dto.CollectionsResponse{Collections: collections, Total: len(collections)},
	))
}

func (c *vectorstoreController) DeleteCollection(ctx *fiber.Ctx) error {
	name := ctx.Params("name")

	if _, err := c.store.Describe(ctx.Context(), name); err != nil {
		return ctx.Status(fiber.StatusNotFound).
			JSON(serverutils.ErrorResponse(fiber.StatusNotFound, fmt.Sprintf("Collection '%s' not found", name)))
	}

	if err := c.store.DeleteCollection(ctx.Context(), name); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any](
		fmt.Sprintf("Collection '%s' deleted successfully", name), nil))
}

func usernameFromLocals(ctx *fiber.Ctx) string {
	if username, ok := ctx.Locals("username").(string); ok {
		return username
	}
	return "unknown"
}
