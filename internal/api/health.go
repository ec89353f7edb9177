package api

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Health tracks readiness for /readyz.
type Health struct {
	ready atomic.Bool
}

func NewHealth(initialReady bool) *Health {
	h := &Health{}
	h.ready.Store(initialReady)
	return h
}

func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Health) IsReady() bool {
	return h.ready.Load()
}

func livenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readinessHandler(h *Health) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.IsReady() {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
	}
}
