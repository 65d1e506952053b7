// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"press/internal/models"
	"press/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Description Comment threads of a post with replies nested under their parents
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	threads, err := s.commentService.ListThreads(c.UserContext(), postID)
	if err != nil {
		return respondError(c, err)
	}
	if threads == nil {
		threads = []*models.Comment{}
	}
	return c.JSON(threads)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{body=string,parent_id=int} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Body     string `json:"body"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   userID,
		PostID:   postID,
		Body:     req.Body,
		ParentID: req.ParentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// MoveComment handles PUT /api/comments/:id/parent
// @Summary Re-parent a comment
// @Description Moves the comment and its replies under another comment of the same post, or to the top level when parent_id is null
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body object{parent_id=int} true "New parent"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse "CYCLE when the parent is a descendant"
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id}/parent [put]
func (s *Server) MoveComment(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		ParentID *uint `json:"parent_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.MoveComment(c.UserContext(), service.MoveCommentInput{
		UserID:    userID,
		CommentID: commentID,
		ParentID:  req.ParentID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}
