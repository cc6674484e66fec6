package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-moodcam/pkg/hub"
)

// handleStatus returns counters and the latest summary.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleReports returns the report history, oldest first.
// ?limit=N returns only the last N.
func (s *Server) handleReports(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	s.mu.RLock()
	history := s.history
	if limit > 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}
	out := make([]reportMessage, len(history))
	for i, r := range history {
		out[i] = newReportMessage(r)
	}
	s.mu.RUnlock()

	return c.JSON(out)
}

// handleLatest returns the most recent report or 404.
func (s *Server) handleLatest(c *fiber.Ctx) error {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no report yet"})
	}
	return c.JSON(newReportMessage(last))
}

// handleReportsWS sends the latest report, then streams new ones.
func (s *Server) handleReportsWS(c *websocket.Conn) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last != nil {
		if err := c.WriteJSON(newReportMessage(last)); err != nil {
			return
		}
	}
	s.serve(s.reportHub, c)
}

// handleCameraWS streams annotated JPEG frames.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.serve(s.cameraHub, c)
}

func (s *Server) serve(h *hub.Hub, c *websocket.Conn) {
	client := hub.NewClient(h, c)
	if client == nil {
		return
	}
	client.Run()
}
