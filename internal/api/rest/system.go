package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/status
func (s *Server) getControllerStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse("STATUS_503", "No controller attached", nil))
		return
	}
	c.JSON(http.StatusOK, s.status.Status())
}
