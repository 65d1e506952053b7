package server

import (
	"press/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFeatures handles GET /api/features
// @Summary Feature flags for the viewer
// @Tags features
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /features [get]
func (s *Server) GetFeatures(c *fiber.Ctx) error {
	userID, _ := currentUserID(c)
	return c.JSON(s.flags.Snapshot(userID))
}

// GetFeatureFlags handles GET /api/admin/feature-flags
// @Summary Configured feature flags
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := currentUserID(c)
	return c.JSON(fiber.Map{
		"raw":       s.flags.Raw(),
		"evaluated": s.flags.Snapshot(userID),
	})
}

// FeatureRequired answers 404 when flag is off for the current viewer.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := currentUserID(c)
		if !s.flags.Enabled(flag, userID) {
			return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Feature", flag))
		}
		return c.Next()
	}
}
