package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-pivoice/internal/telemetry"
	"github.com/teslashibe/go-pivoice/pkg/assistant"
	"github.com/teslashibe/go-pivoice/pkg/audioio"
	"github.com/teslashibe/go-pivoice/pkg/display"
	"github.com/teslashibe/go-pivoice/pkg/gpio"
	"github.com/teslashibe/go-pivoice/pkg/stt"
	"github.com/teslashibe/go-pivoice/pkg/web"
)

func newRunCmd(a *app) *cobra.Command {
	var sim, console, mockAudio bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interaction loop",
		Long: `Waits for the switch, records, transcribes, answers and shows the answer
on the display, until interrupted. --sim replaces the GPIO switch with one
driven from the web panel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, sim, console, mockAudio)
		},
	}
	cmd.Flags().BoolVar(&sim, "sim", false, "use a simulated switch driven by the web panel")
	cmd.Flags().BoolVar(&console, "console", false, "draw the display on the terminal instead of the LCD")
	cmd.Flags().BoolVar(&mockAudio, "mock-audio", false, "write synthetic WAV files instead of running arecord")
	return cmd
}

func (a *app) run(cmd *cobra.Command, sim, console, mockAudio bool) error {
	cfg, logger := a.cfg, a.logger

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Version:  Version,
	}, logger)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	// Switch
	var sw gpio.Source
	var simSwitch *gpio.Sim
	if sim {
		simSwitch = gpio.NewSim()
		sw = simSwitch
		cfg.Web.Enabled = true
	} else {
		pin, err := gpio.OpenPin(gpio.PinConfig{
			Name:     cfg.Switch.Pin,
			Debounce: cfg.Switch.Debounce.Duration,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		sw = pin
	}
	defer sw.Close()

	// Display
	sink, err := openDisplay(cfg.Display, console, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	// Audio and speech
	var rec audioio.Recorder
	if mockAudio {
		rec = audioio.NewMock()
	} else {
		rec, err = audioio.NewARecord(audioio.Config{
			Device:  cfg.Audio.Device,
			Command: cfg.Audio.Command,
			Logger:  logger,
		})
		if err != nil {
			sink.Close()
			return err
		}
	}
	transcriber, err := stt.NewOpenAI(
		stt.WithAPIKey(cfg.STT.APIKey),
		stt.WithBaseURL(cfg.STT.BaseURL),
		stt.WithModel(cfg.STT.Model),
		stt.WithTimeout(cfg.STT.Timeout.Duration),
		stt.WithLogger(logger),
	)
	if err != nil {
		sink.Close()
		return err
	}
	defer transcriber.Close()

	// Dialogue
	orch, backend, reg, err := newDialogue(cfg, logger)
	if err != nil {
		sink.Close()
		return err
	}
	defer backend.Close()

	var loop *assistant.Loop
	var panel *web.Server
	if cfg.Web.Enabled {
		panel = web.NewServer(web.Config{
			Addr:   cfg.Web.Addr,
			Status: func() assistant.Status { return loop.Status() },
			Tools:  reg,
			Switch: simSwitch,
			Logger: logger,
		})
		sink = display.Tee{sink, panel.Mirror()}
	}
	defer sink.Close()

	loop, err = assistant.New(assistant.Deps{
		Switch:      sw,
		Display:     sink,
		Recorder:    rec,
		Transcriber: transcriber,
		Dialogue:    orch,
	}, assistant.Config{
		AudioPath:      cfg.Audio.Path,
		RecordDuration: cfg.Audio.Duration.Duration,
		NoSpeechPause:  cfg.Loop.NoSpeechPause.Duration,
		AnswerDwell:    cfg.Loop.AnswerDwell.Duration,
		ErrorPause:     cfg.Loop.ErrorPause.Duration,
		ReadyLine1:     cfg.Loop.ReadyLine1,
		ReadyLine2:     cfg.Loop.ReadyLine2,
		Cols:           cfg.Display.Cols,
	}, assistant.WithLogger(logger))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if panel != nil {
		g.Go(func() error {
			return panel.ListenAndServe(ctx)
		})
	}
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
