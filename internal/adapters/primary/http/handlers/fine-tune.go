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

func (h *Handler) CreateFineTune(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	var req dto.CreateFineTuneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ft, err := h.fineTuneSvc.Create(c.Request.Context(), owner, services.CreateFineTuneInput{
		Model:           req.Model,
		TrainingFile:    req.TrainingFile,
		ValidationFile:  req.ValidationFile,
		Hyperparameters: req.Hyperparameters,
		Suffix:          req.Suffix,
	})
	if err != nil {
		log.WithError(err).Error("create fine-tune failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CreateFineTuneResponse{FineTuneID: ft.ID})
}

func (h *Handler) ListFineTunes(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	limit, offset := pageParams(c)

	filter := output.FineTuneFilter{
		Status:    c.Query("status"),
		BaseModel: c.Query("model"),
		SortBy:    c.Query("sort_by"),
		Order:     c.Query("order"),
		Limit:     limit,
		Offset:    offset,
	}

	jobs, total, err := h.fineTuneSvc.List(c.Request.Context(), owner, filter)
	if err != nil {
		log.WithError(err).Error("list fine-tunes failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.FineTuneResponse, 0, len(jobs))
	for _, ft := range jobs {
		items = append(items, dto.ToFineTuneResponse(ft))
	}

	c.JSON(http.StatusOK, dto.ListFineTunesResponse{
		Jobs:       items,
		Total:      total,
		PageSize:   limit,
		NextOffset: offset + len(items),
	})
}

func (h *Handler) GetFineTune(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	ft, err := h.fineTuneSvc.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToFineTuneResponse(ft))
}

func (h *Handler) CancelFineTune(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	if err := h.fineTuneSvc.Cancel(c.Request.Context(), owner, c.Param("id")); err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CancelFineTuneResponse{Success: true})
}
