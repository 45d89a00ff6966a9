package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Index     string `json:"index"`
	Timestamp string `json:"timestamp"`
}

// HealthChecker is implemented by index backends that can be probed.
// The Qdrant store satisfies it; the in-memory store has nothing to probe.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates the /health handler. It checks index backend
// connectivity and maps the result to 200/503 for deployment health checks.
func NewHealthHandler(store HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		if store == nil {
			response.Status = "healthy"
			response.Index = "memory"
			c.JSON(http.StatusOK, response)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Index = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}

		response.Status = "healthy"
		response.Index = "connected"
		c.JSON(http.StatusOK, response)
	}
}
