// Package web serves the status panel: loop status, a simulated switch,
// manual tool runs and a live mirror of the display.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-pivoice/pkg/assistant"
	"github.com/teslashibe/go-pivoice/pkg/gpio"
	"github.com/teslashibe/go-pivoice/pkg/hub"
	"github.com/teslashibe/go-pivoice/pkg/tool"
)

// Config wires the panel to the running assistant.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Status returns the loop snapshot. Optional.
	Status func() assistant.Status

	// Tools backs the tool endpoints. Optional.
	Tools *tool.Registry

	// Switch is driven by the switch endpoints. Nil when a hardware switch
	// is in use; the endpoints then answer 409.
	Switch *gpio.Sim

	Logger *slog.Logger
}

// Server is the web panel server.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	displayHub *hub.Hub
	mirror     *Mirror
}

// NewServer creates the panel.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tools == nil {
		cfg.Tools, _ = tool.NewRegistry()
	}

	s := &Server{
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "web"),
		displayHub: hub.New("display", cfg.Logger),
	}
	s.mirror = NewMirror(s.displayHub)

	app := fiber.New(fiber.Config{
		AppName:               "pivoice",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/switch/on", s.handleSwitch(true))
	api.Post("/switch/off", s.handleSwitch(false))
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleRunTool)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/display", websocket.New(s.handleDisplayWS))

	s.app = app
	return s
}

// Mirror returns the display sink that feeds /ws/display.
func (s *Server) Mirror() *Mirror {
	return s.mirror
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve runs the panel on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.displayHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	s.logger.Info("web panel listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
