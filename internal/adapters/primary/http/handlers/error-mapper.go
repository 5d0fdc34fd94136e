package handlers

import (
	"errors"
	"net/http"

	"llm-engine-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrFineTuneNotFound),
		errors.Is(err, domain.ErrBaseModelNotFound),
		errors.Is(err, domain.ErrModelEndpointNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	// Conflict errors
	case errors.Is(err, domain.ErrModelEndpointNameConflict),
		errors.Is(err, domain.ErrFineTuneStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	// Bad request / validation errors
	case errors.Is(err, domain.ErrMissingOwner),
		errors.Is(err, domain.ErrInvalidBaseModel),
		errors.Is(err, domain.ErrMissingTrainingFile),
		errors.Is(err, domain.ErrInvalidFileLocation),
		errors.Is(err, domain.ErrInvalidDataset),
		errors.Is(err, domain.ErrInvalidSuffix),
		errors.Is(err, domain.ErrInvalidHyperparameter),
		errors.Is(err, domain.ErrBaseModelNotFineTunable),
		errors.Is(err, domain.ErrInvalidModelEndpointName),
		errors.Is(err, domain.ErrInvalidWorkerCount),
		errors.Is(err, domain.ErrInvalidPrompt),
		errors.Is(err, domain.ErrInvalidMaxNewTokens),
		errors.Is(err, domain.ErrInvalidTemperature),
		errors.Is(err, domain.ErrMissingEndpointName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	// Business rule violations
	case errors.Is(err, domain.ErrFineTuneTerminal),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrModelEndpointNotReady):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrNotEndpointOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrQueueUnavailable),
		errors.Is(err, domain.ErrOrchestratorUnavailable),
		errors.Is(err, domain.ErrInferenceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
