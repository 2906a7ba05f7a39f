package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func newWeatherCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "weather <location>",
		Short: "Run the get_weather tool and print its JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, wc, err := newTools(a.cfg.Weather, a.logger)
			if err != nil {
				return err
			}
			res := wc.GetWeather(cmd.Context(), strings.Join(args, " "))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
