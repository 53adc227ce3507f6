package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-seating-api/internal/middleware"
)

// actorID is the user id of the authenticated caller, or "" on public routes.
func actorID(c *gin.Context) string {
	if claims := middleware.CurrentClaims(c); claims != nil {
		return claims.UserID
	}
	return ""
}
