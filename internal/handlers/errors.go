package handlers

import (
	"errors"
	"net/http"

	"github.com/danielkropka/social-flow-sub001/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError writes the {"error","error_description"} body for err.
// Connect errors carry their own status and code; anything else is a 500.
func respondError(c *gin.Context, err error) {
	var ce *services.ConnectError
	if errors.As(err, &ce) {
		description := ce.Message
		if ce.Kind == services.KindUpstream || ce.Kind == services.KindPersistence {
			// Upstream and database error text stays in the logs.
			_ = c.Error(err)
			description = "The request could not be completed, please try again later"
		}
		c.JSON(ce.HTTPStatus(), gin.H{
			"error":             ce.Code,
			"error_description": description,
		})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":             "server_error",
		"error_description": "Internal server error",
	})
}

func respondBadRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":             "invalid_request",
		"error_description": description,
	})
}
