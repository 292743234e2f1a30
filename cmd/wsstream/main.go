// Command wsstream sends payloads to, and serves, WebSocket peers that
// speak the chunked framing protocol.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zereker/wsstream"
)

// app holds the global flags and the state resolved before a subcommand runs.
type app struct {
	configPath string
	framing    string
	heartbeat  time.Duration
	logFormat  string
	logLevel   string

	cfg    config
	logger wsstream.Logger
	sync   func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "wsstream",
		Short:         "Exchange chunked messages over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.sync != nil {
				a.sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "TOML config file")
	flags.StringVar(&a.framing, "framing", "sequential", "outbound chunk framing: sequential or multiplexed")
	flags.DurationVar(&a.heartbeat, "heartbeat", 0, "keep-alive ping interval, 0 disables it")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(newSendCmd(a), newEchoCmd(a))
	return root
}

// setup resolves defaults, then the config file, then explicitly set flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := defaultConfig()
	if a.configPath != "" {
		var err error
		cfg, err = loadConfig(a.configPath, cfg)
		if err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("framing") {
		f, err := parseFraming(a.framing)
		if err != nil {
			return err
		}
		cfg.Framing = f
	}
	if flags.Changed("heartbeat") {
		cfg.Heartbeat = a.heartbeat
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}

	logger, sync, err := newLogger(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.sync = sync
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
