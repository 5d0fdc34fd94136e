package handlers

import (
	"net/http"

	"llm-engine-service/internal/adapters/primary/http/dto"
	"llm-engine-service/internal/adapters/primary/http/middleware"
	output "llm-engine-service/internal/core/ports/output"
	"llm-engine-service/internal/core/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) CreateModelEndpoint(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	var req dto.CreateModelEndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	endpoint, err := h.endpointSvc.Create(c.Request.Context(), owner, services.CreateModelEndpointInput{
		Name:              req.Name,
		ModelName:         req.ModelName,
		CheckpointPath:    req.CheckpointPath,
		FrameworkImageTag: req.InferenceFrameworkImageTag,
		NumShards:         req.NumShards,
		GPUs:              req.GPUs,
		GPUType:           req.GPUType,
		MinWorkers:        req.MinWorkers,
		MaxWorkers:        req.MaxWorkers,
		Public:            req.PublicInference,
		Labels:            req.Labels,
	})
	if err != nil {
		log.WithError(err).Error("create model endpoint failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CreateModelEndpointResponse{EndpointCreationTaskID: endpoint.ID})
}

func (h *Handler) ListModelEndpoints(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	limit, offset := pageParams(c)

	filter := output.ModelEndpointFilter{
		ModelName: c.Query("model_name"),
		Status:    c.Query("status"),
		SortBy:    c.Query("sort_by"),
		Order:     c.Query("order"),
		Limit:     limit,
		Offset:    offset,
	}

	endpoints, total, err := h.endpointSvc.List(c.Request.Context(), owner, filter)
	if err != nil {
		log.WithError(err).Error("list model endpoints failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.ModelEndpointResponse, 0, len(endpoints))
	for _, e := range endpoints {
		items = append(items, dto.ToModelEndpointResponse(e))
	}

	c.JSON(http.StatusOK, dto.ListModelEndpointsResponse{
		ModelEndpoints: items,
		Total:          total,
		PageSize:       limit,
		NextOffset:     offset + len(items),
	})
}

func (h *Handler) GetModelEndpoint(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	endpoint, err := h.endpointSvc.Get(c.Request.Context(), owner, c.Param("name"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToModelEndpointResponse(endpoint))
}

func (h *Handler) DeleteModelEndpoint(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	if err := h.endpointSvc.Delete(c.Request.Context(), owner, c.Param("name")); err != nil {
		log.WithError(err).WithField("name", c.Param("name")).Error("delete model endpoint failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DeleteModelEndpointResponse{Deleted: true})
}

func (h *Handler) ListBaseModels(c *gin.Context) {
	models := h.endpointSvc.ListBaseModels()

	items := make([]dto.BaseModelResponse, 0, len(models))
	for _, m := range models {
		items = append(items, dto.ToBaseModelResponse(m))
	}

	c.JSON(http.StatusOK, dto.ListBaseModelsResponse{Models: items})
}
