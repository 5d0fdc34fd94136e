package handlers

import (
	"net/http"

	"llm-engine-service/internal/adapters/primary/http/dto"
	"llm-engine-service/internal/adapters/primary/http/middleware"
	"llm-engine-service/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateCompletionSync(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	var req dto.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.completionSvc.CreateSync(c.Request.Context(), owner, c.Query("model_endpoint_name"), req.ToDomain())
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CompletionSyncResponse{RequestID: result.RequestID, Output: result.Output})
}

// CreateCompletionStream relays tokens as server-sent events. Failures before
// the first token get a regular JSON error, later ones an "error" event.
func (h *Handler) CreateCompletionStream(c *gin.Context) {
	owner, err := middleware.Owner(c)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	var req dto.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := ""
	streaming := false
	err = h.completionSvc.CreateStream(c.Request.Context(), owner, c.Query("model_endpoint_name"), req.ToDomain(),
		func(res domain.CompletionStreamResult) error {
			if !streaming {
				c.Header("Cache-Control", "no-cache")
				c.Header("Connection", "keep-alive")
				c.Header("X-Accel-Buffering", "no")
				c.Status(http.StatusOK)
				streaming = true
			}
			requestID = res.RequestID

			out := res.Output
			c.SSEvent("message", dto.CompletionStreamResponse{RequestID: res.RequestID, Output: &out})
			c.Writer.Flush()
			return c.Request.Context().Err()
		})
	if err == nil {
		return
	}
	if !streaming {
		mapDomainError(c, err)
		return
	}

	c.SSEvent("error", dto.CompletionStreamResponse{RequestID: requestID, Error: err.Error()})
	c.Writer.Flush()
}
