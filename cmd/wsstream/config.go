package main

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/Zereker/wsstream"
)

type fileConfig struct {
	URL            string `toml:"url"`
	Addr           string `toml:"addr"`
	Framing        string `toml:"framing"`
	Heartbeat      string `toml:"heartbeat"`
	WriteTimeout   string `toml:"write_timeout"`
	BufferSize     int    `toml:"buffer_size"`
	MaxMessageSize int    `toml:"max_message_size"`
	LogFormat      string `toml:"log_format"`
	LogLevel       string `toml:"log_level"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// config is the resolved configuration of one command invocation.
type config struct {
	URL            string
	Addr           string
	Framing        wsstream.Framing
	Heartbeat      time.Duration
	WriteTimeout   time.Duration
	BufferSize     int
	MaxMessageSize int
	LogFormat      string
	LogLevel       string
	MetricsAddr    string
}

func defaultConfig() config {
	return config{
		URL:       "ws://127.0.0.1:8080/",
		Addr:      "127.0.0.1:8080",
		Framing:   wsstream.FramingSequential,
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// loadConfig applies the keys defined in the TOML file at path over cfg.
func loadConfig(path string, cfg config) (config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load config")
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("framing") {
		f, err := parseFraming(raw.Framing)
		if err != nil {
			return config{}, err
		}
		cfg.Framing = f
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return config{}, errors.Wrap(err, "parse heartbeat")
		}
		cfg.Heartbeat = d
	}

	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return config{}, errors.Wrap(err, "parse write_timeout")
		}
		cfg.WriteTimeout = d
	}

	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}

	if meta.IsDefined("max_message_size") {
		cfg.MaxMessageSize = raw.MaxMessageSize
	}

	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.TrimSpace(raw.LogFormat)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}

func parseFraming(s string) (wsstream.Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential":
		return wsstream.FramingSequential, nil
	case "multiplexed":
		return wsstream.FramingMultiplexed, nil
	default:
		return 0, errors.Errorf("unknown framing %q (want sequential or multiplexed)", s)
	}
}

// connOptions maps cfg to connection options. Zero values keep the
// library defaults.
func connOptions(cfg config, logger wsstream.Logger) []wsstream.Option {
	opts := []wsstream.Option{
		wsstream.LoggerOption(logger),
		wsstream.FramingOption(cfg.Framing),
		wsstream.HeartbeatOption(cfg.Heartbeat),
	}
	if cfg.WriteTimeout > 0 {
		opts = append(opts, wsstream.WriteTimeoutOption(cfg.WriteTimeout))
	}
	if cfg.BufferSize > 0 {
		opts = append(opts, wsstream.BufferSizeOption(cfg.BufferSize))
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts, wsstream.MessageMaxSize(cfg.MaxMessageSize))
	}
	return opts
}
