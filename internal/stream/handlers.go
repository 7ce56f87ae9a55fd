package stream

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// maxClientMessage bounds what a viewer may send; the stream is one-way.
const maxClientMessage = 512

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionID")
		client := hub.Register(sessionID)
		defer hub.Unregister(client)

		c.SetReadLimit(maxClientMessage)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Printf("stream %s: write error: %v", sessionID, err)
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))

	r.Get("/sessions/:sessionID/watchers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"session_id": c.Params("sessionID"), "watchers": hub.Watchers(c.Params("sessionID"))})
	})
}
