package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"llm-engine-service/internal/core/domain"
)

const keyOwner = "owner"

// BasicAuth takes the API key from the basic auth username and uses it as the
// owner of every resource the request touches. The password is ignored.
func BasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, _, ok := c.Request.BasicAuth()
		apiKey = strings.TrimSpace(apiKey)
		if !ok || apiKey == "" {
			c.Header("WWW-Authenticate", `Basic realm="llm-engine"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domain.ErrUnauthenticated.Error()})
			return
		}

		c.Set(keyOwner, apiKey)
		c.Next()
	}
}

// Owner returns the identity stored by BasicAuth
func Owner(c *gin.Context) (string, error) {
	owner := c.GetString(keyOwner)
	if owner == "" {
		return "", domain.ErrUnauthenticated
	}
	return owner, nil
}
