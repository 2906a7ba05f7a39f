package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pivoice/pkg/display"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text...>",
		Short: "Answer one typed question as the display would show it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, backend, _, err := newDialogue(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer backend.Close()

			answer, err := orch.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			line1, line2 := display.Split(answer, a.cfg.Display.Cols)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer)
			fmt.Fprintln(out)
			return display.NewConsole(out, a.cfg.Display.Cols).Show(line1, line2)
		},
	}
}
