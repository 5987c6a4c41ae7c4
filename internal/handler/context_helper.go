package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/lms-enroll-api/internal/middleware"
	"github.com/campuskit/lms-enroll-api/internal/models"
	"github.com/campuskit/lms-enroll-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorFromContext(c *gin.Context) service.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}
}
