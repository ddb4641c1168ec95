package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
)

// registerSessionRoutes attaches the /session endpoint.
func registerSessionRoutes(rg *gin.RouterGroup) {
	rg.GET("/session", sessionHandler)
}

func sessionHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"userId":  userID,
		"isGuest": c.GetBool("isGuest"),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	respond.JSON(c, http.StatusOK, response)
}
