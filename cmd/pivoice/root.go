package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-pivoice/internal/config"
	ilog "github.com/teslashibe/go-pivoice/internal/log"
)

// app carries state shared by all subcommands after PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pivoice",
		Short: "Push-to-talk voice assistant for a Raspberry Pi LCD",
		Long: `pivoice records a short clip while the slide switch is on, transcribes it,
asks a generative model (with a weather tool) for a one-sentence answer and
shows that answer on a 16x2 character LCD.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "TOML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(a),
		newAskCmd(a),
		newWeatherCmd(a),
		newLCDTestCmd(a),
		newSwitchTestCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads .env, the config file and the environment, then sets up logging.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	switch {
	case a.debug:
		cfg.Log.Level = "debug"
	case a.logLevel != "":
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ilog.Init(cfg.Log.Level, cfg.Log.Format)
	a.cfg = cfg
	a.logger = ilog.L()
	return nil
}
