// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetTrending handles GET /api/feed/trending
// @Summary Trending posts
// @Description Posts ranked by likes decayed over time since their last update
// @Tags feed
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Posts per page"
// @Success 200 {object} service.TrendingPage
// @Router /feed/trending [get]
func (s *Server) GetTrending(c *fiber.Ctx) error {
	page, size := s.parsePage(c)

	res, err := s.feedService.Trending(c.UserContext(), page, size)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetFollowing handles GET /api/feed/following
// @Summary Followed posts
// @Tags feed
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Posts per page"
// @Success 200 {object} service.FollowingPage
// @Router /feed/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page, size := s.parsePage(c)

	res, err := s.feedService.Following(c.UserContext(), userID, page, size)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
