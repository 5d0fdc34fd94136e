package handlers

import (
	"strconv"

	"llm-engine-service/internal/adapters/primary/http/middleware"
	output "llm-engine-service/internal/core/ports/output"
	"llm-engine-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	fineTuneSvc   *services.FineTuneService
	endpointSvc   *services.ModelEndpointService
	completionSvc *services.CompletionService
}

func New(
	fineTuneSvc *services.FineTuneService,
	endpointSvc *services.ModelEndpointService,
	completionSvc *services.CompletionService,
) *Handler {
	return &Handler{
		fineTuneSvc:   fineTuneSvc,
		endpointSvc:   endpointSvc,
		completionSvc: completionSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.Use(middleware.BasicAuth())

	// Fine-tunes
	r.POST("/fine-tunes", h.CreateFineTune)
	r.GET("/fine-tunes", h.ListFineTunes)
	r.GET("/fine-tunes/:id", h.GetFineTune)
	r.PUT("/fine-tunes/:id/cancel", h.CancelFineTune)

	// Model Endpoints
	r.POST("/model-endpoints", h.CreateModelEndpoint)
	r.GET("/model-endpoints", h.ListModelEndpoints)
	r.GET("/model-endpoints/:name", h.GetModelEndpoint)
	r.DELETE("/model-endpoints/:name", h.DeleteModelEndpoint)

	// Completions
	r.POST("/completions-sync", h.CreateCompletionSync)
	r.POST("/completions-stream", h.CreateCompletionStream)

	// Base model catalog
	r.GET("/models", h.ListBaseModels)
}

// pageParams reads limit and offset, normalized the same way the services apply them
func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	return output.NormalizePage(limit, offset)
}
