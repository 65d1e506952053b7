// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"press/internal/models"
	"press/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PostView is a post together with the viewer's engagement on it.
type PostView struct {
	Post     *models.Post `json:"post"`
	Liked    bool         `json:"liked"`
	Followed bool         `json:"followed"`
}

// CreatePost handles POST /api/posts
// @Summary Create own post
// @Description Each user has exactly one post. Blank content starts from the default template.
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content=string} false "Post content"
// @Success 201 {object} models.Post
// @Failure 409 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Content string `json:"content"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	post, err := s.postService.CreatePost(c.UserContext(), userID, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetMyPost handles GET /api/posts/me
// @Summary Get own post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/me [get]
func (s *Server) GetMyPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	post, err := s.postService.GetOwnPost(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// UpdateMyPost handles PUT /api/posts
// @Summary Update own post
// @Description Re-derives the title, notifies mentioned users and marks existing comments old
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content=string} true "Post content"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [put]
func (s *Server) UpdateMyPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:  userID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Returns the post and, for signed-in viewers, whether they like and follow it
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	view := PostView{Post: post}
	if userID, ok := currentUserID(c); ok {
		view.Liked, view.Followed, err = s.engagementService.State(ctx, id, userID)
		if err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(view)
}

// GetPostHTML handles GET /api/posts/:id/html
// @Summary Render a post
// @Description Markdown rendered to HTML with mentions linked to profiles
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{id=int,html=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/html [get]
func (s *Server) GetPostHTML(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	html, err := s.postService.RenderHTML(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"id":   id,
		"html": html,
	})
}

// ToggleEngagement handles POST /api/posts/:id/like and /api/posts/:id/follow
// @Summary Toggle like or follow
// @Tags engagement
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.EngagementResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
// @Router /posts/{id}/follow [post]
func (s *Server) ToggleEngagement(kind models.EngagementKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}

		res, err := s.engagementService.Toggle(c.UserContext(), kind, id, userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}

// SetEngagement handles PUT /api/posts/:id/like and /api/posts/:id/follow
// @Summary Set like or follow
// @Description Idempotent: repeating the same state changes nothing and emits no notification
// @Tags engagement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{active=bool} true "Desired state"
// @Success 200 {object} service.EngagementResult
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
// @Router /posts/{id}/follow [put]
func (s *Server) SetEngagement(kind models.EngagementKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(uint)
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}

		var req struct {
			Active *bool `json:"active"`
		}
		if err := c.BodyParser(&req); err != nil || req.Active == nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError(`Body must be {"active": true|false}`))
		}

		res, err := s.engagementService.Set(c.UserContext(), service.SetEngagementInput{
			Kind:   kind,
			PostID: id,
			UserID: userID,
			Active: *req.Active,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	}
}
