package handler

import (
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"go-proposal-review/internal/middleware"
	"go-proposal-review/internal/session"
	"go-proposal-review/internal/ws"
)

const wsSessionKey = "ws_session"

// RegisterWebSocket mounts the workflow event stream at /ws. Browsers cannot
// set headers on an upgrade, so the token may also come as ?token=.
func RegisterWebSocket(app *fiber.App, hub *ws.Hub, auth middleware.Authenticator) {
	if auth == nil {
		panic("handler.RegisterWebSocket: Authenticator is nil; pass the auth service when building routes")
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return c.SendStatus(fiber.StatusUpgradeRequired)
		}

		sess, err := auth.Authenticate(c.UserContext(), wsToken(c))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		c.Locals(wsSessionKey, sess)
		return c.Next()
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		sess, ok := c.Locals(wsSessionKey).(*session.Session)
		if !ok {
			c.Close()
			return
		}
		if !hub.Register(c, ws.Subscriber{UserID: sess.UserID, Admin: sess.IsAdmin()}) {
			return
		}
		defer hub.Unregister(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}

func wsToken(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
