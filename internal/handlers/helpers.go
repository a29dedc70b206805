package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classchat-service/internal/apperrors"
	"classchat-service/internal/middleware"
	"classchat-service/internal/models"
	"classchat-service/internal/policy"
	"classchat-service/internal/repositories"
)

func viewer(c *gin.Context) (models.Viewer, bool) {
	v, ok := middleware.ViewerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return v, ok
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// loadGroup resolves the group from the path and enforces the membership
// rule. A group the viewer cannot access is reported as 403, never leaked.
func loadGroup(c *gin.Context, groups repositories.GroupRepository) (models.Group, models.Viewer, bool) {
	v, ok := viewer(c)
	if !ok {
		return models.Group{}, models.Viewer{}, false
	}
	groupID, ok := pathID(c, "group_id")
	if !ok {
		return models.Group{}, v, false
	}

	group, err := groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		} else {
			respondError(c, err)
		}
		return models.Group{}, v, false
	}
	if !policy.CanAccessGroup(v, group) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this group chat."})
		return models.Group{}, v, false
	}
	return group, v, true
}

func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": apperrors.Message(err)})
}
