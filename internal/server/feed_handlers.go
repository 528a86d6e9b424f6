package server

import (
	"log/slog"

	"chronicle/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedUpgrade rejects plain HTTP requests to the feed endpoint.
func (s *Server) FeedUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// FeedHandler streams post and comment events to websocket readers.
// Anonymous readers are allowed; the user id is logged when present.
// @Summary Live feed
// @Description WebSocket stream of post_published, post_deleted and comment_created events
// @Tags feed
// @Router /ws/feed [get]
func (s *Server) FeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localUserID).(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed connection refused",
				slog.Uint64("user_id", uint64(userID)),
				slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		middleware.Logger.Debug("feed connected", slog.Uint64("user_id", uint64(userID)))

		go client.WritePump()
		client.ReadPump()
	})
}
