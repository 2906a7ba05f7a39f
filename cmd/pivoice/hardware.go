package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pivoice/pkg/gpio"
)

func newLCDTestCmd(a *app) *cobra.Command {
	var console bool
	var hold time.Duration

	cmd := &cobra.Command{
		Use:   "lcd-test",
		Short: "Show a test message on the display",
		RunE: func(cmd *cobra.Command, args []string) error {
			sink, err := openDisplay(a.cfg.Display, console, cmd.OutOrStdout(), a.logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			if err := sink.Show("Hello from Pi!", "LCD works :)"); err != nil {
				return err
			}
			select {
			case <-cmd.Context().Done():
			case <-time.After(hold):
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&console, "console", false, "draw on the terminal instead of the LCD")
	cmd.Flags().DurationVar(&hold, "hold", 5*time.Second, "how long to keep the message before clearing")
	return cmd
}

func newSwitchTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch-test",
		Short: "Print switch transitions until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			pin, err := gpio.OpenPin(gpio.PinConfig{
				Name:     a.cfg.Switch.Pin,
				Debounce: a.cfg.Switch.Debounce.Duration,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}
			defer pin.Close()

			return watchSwitch(ctx, pin, cmd.OutOrStdout())
		},
	}
}

// watchSwitch prints one line per transition until ctx is done.
func watchSwitch(ctx context.Context, sw gpio.Source, w io.Writer) error {
	fmt.Fprintln(w, "Flip the switch (Ctrl+C to exit)")
	for {
		if err := sw.WaitForActivation(ctx); err != nil {
			return nil
		}
		fmt.Fprintln(w, "Pressed!")
		if err := sw.WaitForRelease(ctx); err != nil {
			return nil
		}
		fmt.Fprintln(w, "Released!")
	}
}
