package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-pivoice/internal/config"
	"github.com/teslashibe/go-pivoice/pkg/dialogue"
	"github.com/teslashibe/go-pivoice/pkg/display"
	"github.com/teslashibe/go-pivoice/pkg/inference"
	"github.com/teslashibe/go-pivoice/pkg/tool"
	"github.com/teslashibe/go-pivoice/pkg/weather"
)

// newProvider builds one AI backend from its config block.
func newProvider(name string, ai config.AIConfig, logger *slog.Logger) (inference.Provider, error) {
	pc, ok := ai.ProviderByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown ai provider %q", name)
	}

	// OpenAI-compatible servers other than OpenAI itself may run keyless.
	keyless := strings.EqualFold(name, "openai") && !strings.Contains(pc.BaseURL, "api.openai.com")
	if pc.APIKey == "" && !keyless {
		return nil, inference.ErrNoAPIKey
	}

	opts := []inference.Option{
		inference.WithAPIKey(pc.APIKey),
		inference.WithTimeout(ai.Timeout.Duration),
		inference.WithLogger(logger),
	}
	if pc.Model != "" {
		opts = append(opts, inference.WithModel(pc.Model))
	}
	if pc.BaseURL != "" {
		opts = append(opts, inference.WithBaseURL(pc.BaseURL))
	}
	if ai.MaxTokens > 0 {
		opts = append(opts, inference.WithMaxTokens(ai.MaxTokens))
	}

	switch strings.ToLower(name) {
	case "gemini":
		return inference.NewGemini(opts...)
	case "openai":
		return inference.NewClient(opts...)
	default:
		return inference.NewAnthropic(opts...)
	}
}

// newBackend builds the primary provider, chained with any fallbacks that
// could be configured. A fallback without credentials is skipped.
func newBackend(ai config.AIConfig, logger *slog.Logger) (inference.Provider, error) {
	primary, err := newProvider(ai.Provider, ai, logger)
	if err != nil {
		return nil, fmt.Errorf("ai provider %s: %w", ai.Provider, err)
	}
	if len(ai.Fallback) == 0 {
		return primary, nil
	}

	providers := []inference.Provider{primary}
	for _, name := range ai.Fallback {
		p, err := newProvider(name, ai, logger)
		if err != nil {
			logger.Warn("skipping fallback provider", "provider", name, "error", err)
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 1 {
		return primary, nil
	}
	return inference.NewChainWithLogger(logger, providers...)
}

// newTools registers the weather tool.
func newTools(cfg config.WeatherConfig, logger *slog.Logger) (*tool.Registry, *weather.Client, error) {
	wc := weather.NewClient(
		weather.WithGeocodingURL(cfg.GeocodingURL),
		weather.WithForecastURL(cfg.ForecastURL),
		weather.WithTimeout(cfg.Timeout.Duration),
		weather.WithLogger(logger),
	)
	reg, err := tool.NewRegistry(wc.Tool())
	if err != nil {
		return nil, nil, err
	}
	return reg, wc, nil
}

// newDialogue wires the orchestrator to the configured backend and tools.
func newDialogue(cfg *config.Config, logger *slog.Logger) (*dialogue.Orchestrator, inference.Provider, *tool.Registry, error) {
	backend, err := newBackend(cfg.AI, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	reg, _, err := newTools(cfg.Weather, logger)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}
	orch := dialogue.New(backend, reg,
		dialogue.WithDisplaySize(cfg.Display.Cols, cfg.Display.Rows),
		dialogue.WithSystemPrompt(cfg.AI.SystemPrompt),
		dialogue.WithMaxTokens(cfg.AI.MaxTokens),
		dialogue.WithLogger(logger),
	)
	return orch, backend, reg, nil
}

// openDisplay opens the LCD, or a console box on w when console is set.
func openDisplay(cfg config.DisplayConfig, console bool, w io.Writer, logger *slog.Logger) (display.Sink, error) {
	if console {
		return display.NewConsole(w, cfg.Cols), nil
	}
	return display.OpenLCD(display.LCDConfig{
		Bus:     cfg.Bus,
		Address: cfg.Address,
		Cols:    cfg.Cols,
		Rows:    cfg.Rows,
		Logger:  logger,
	})
}
