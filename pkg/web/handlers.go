package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pivoice/pkg/assistant"
	"github.com/teslashibe/go-pivoice/pkg/display"
	"github.com/teslashibe/go-pivoice/pkg/hub"
	"github.com/teslashibe/go-pivoice/pkg/tool"
)

// StatusResponse is the /api/status body.
type StatusResponse struct {
	assistant.Status
	Display   display.Payload `json:"display"`
	Simulated bool            `json:"simulated_switch"`
	SwitchOn  bool            `json:"switch_on"`
	Clients   int             `json:"display_clients"`
}

// ToolInfo describes an available tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// RunToolRequest is the request body for running a tool.
type RunToolRequest struct {
	Args map[string]any `json:"args"`
}

// handleStatus returns the loop state and the current screen.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Display:   s.mirror.Current(),
		Simulated: s.cfg.Switch != nil,
		Clients:   s.displayHub.ClientCount(),
	}
	if s.cfg.Status != nil {
		resp.Status = s.cfg.Status()
	}
	if s.cfg.Switch != nil {
		resp.SwitchOn = s.cfg.Switch.IsActive()
	}
	return c.JSON(resp)
}

// handleSwitch flips the simulated switch.
func (s *Server) handleSwitch(on bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.cfg.Switch == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "hardware switch in use",
			})
		}
		if on {
			s.cfg.Switch.Press()
		} else {
			s.cfg.Switch.Release()
		}
		s.logger.Info("simulated switch", "on", on)
		return c.JSON(fiber.Map{"switch_on": s.cfg.Switch.IsActive()})
	}
}

// handleListTools returns available tools.
func (s *Server) handleListTools(c *fiber.Ctx) error {
	defs := s.cfg.Tools.Definitions()
	tools := make([]ToolInfo, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, ToolInfo{
			Name:        string(d.Name),
			Description: d.Description,
			Parameters:  d.Schema(),
		})
	}
	return c.JSON(tools)
}

// handleRunTool runs a tool through the registry.
func (s *Server) handleRunTool(c *fiber.Ctx) error {
	name := c.Params("name")

	var req RunToolRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	raw, err := json.Marshal(req.Args)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := s.cfg.Tools.Execute(c.UserContext(), name, string(raw))

	var unknown *tool.UnknownToolError
	var badArgs *tool.ArgumentError
	switch {
	case errors.As(err, &unknown):
		return c.Status(fiber.StatusNotFound).JSON(res)
	case errors.As(err, &badArgs):
		return c.Status(fiber.StatusBadRequest).JSON(res)
	}

	s.logger.Info("manual tool run", "tool", name, "ok", res.OK)
	return c.JSON(res)
}

// handleDisplayWS streams display payloads, starting with the current one.
func (s *Server) handleDisplayWS(conn *websocket.Conn) {
	client := hub.NewClient(s.displayHub, conn)
	if client == nil {
		conn.Close()
		return
	}
	client.Run()
}
