// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"log/slog"

	"press/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// GetNews handles GET /api/news
// @Summary News
// @Description A page of the caller's notifications, newest first. Every notification is marked read afterwards.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Notifications per page"
// @Success 200 {object} service.NewsPage
// @Failure 403 {object} models.ErrorResponse
// @Router /news [get]
func (s *Server) GetNews(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	page, size := s.parsePage(c)

	res, err := s.notificationService.News(c.UserContext(), userID, page, size)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetUnreadCount handles GET /api/notifications/unread
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{unread=int}
// @Router /notifications/unread [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	n, err := s.notificationService.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread": n})
}

// NotificationsWebSocket streams the caller's notifications as they are emitted.
// @Summary Live notifications
// @Description WebSocket upgrade. Pass the session token as the token query parameter.
// @Tags notifications
// @Param token query string true "Session token"
// @Router /ws [get]
func (s *Server) NotificationsWebSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			if cerr := conn.Close(); cerr != nil {
				middleware.Logger.Warn("websocket close error", slog.String("error", cerr.Error()))
			}
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration rejected",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		go client.WritePump()
		client.ReadPump()
	})
}
