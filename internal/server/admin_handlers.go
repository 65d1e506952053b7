// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"press/internal/models"
	"press/internal/tree"

	"github.com/gofiber/fiber/v2"
)

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)

		admin, err := s.isAdminByUserID(c.UserContext(), userID)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// RecountPost handles POST /api/admin/posts/:id/recount
// @Summary Recompute post counters
// @Description Recounts likes, follows and comments of a post from the rows they summarize
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/posts/{id}/recount [post]
func (s *Server) RecountPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if _, err := s.postService.GetPost(ctx, id); err != nil {
		return respondError(c, err)
	}
	if err := s.engagementService.RecomputeCounts(ctx, id); err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.GetPost(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// VerifyCommentTree handles GET /api/admin/posts/:id/comments/tree
// @Summary Check a comment tree
// @Description Reports whether the stored nested-set bounds of a post's comments are consistent
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{post_id=int,nodes=int,valid=bool,error=string}
// @Router /admin/posts/{id}/comments/tree [get]
func (s *Server) VerifyCommentTree(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	nodes, err := s.commentRepo.Nodes(c.UserContext(), models.PostRef(id))
	if err != nil {
		return respondError(c, err)
	}

	res := fiber.Map{
		"post_id": id,
		"nodes":   len(nodes),
		"valid":   true,
	}
	if verr := tree.Verify(nodes); verr != nil {
		res["valid"] = false
		res["error"] = verr.Error()
	}
	return c.JSON(res)
}

// RebuildCommentTree handles POST /api/admin/posts/:id/comments/tree
// @Summary Rebuild a comment tree
// @Description Recomputes the nested-set bounds of a post's comments from their parent links
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Router /admin/posts/{id}/comments/tree [post]
func (s *Server) RebuildCommentTree(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentRepo.RebuildObject(c.UserContext(), models.PostRef(id), tree.ParseOrder(s.config.CommentOrder)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
