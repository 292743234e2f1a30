package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/wsstream"
)

const metricsReadHeaderTimeout = 10 * time.Second

type echoFlags struct {
	addr            string
	metricsAddr     string
	shutdownTimeout time.Duration
}

func newEchoCmd(a *app) *cobra.Command {
	var f echoFlags

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Run a host that sends every message back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = f.addr
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.MetricsAddr = f.metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runEcho(ctx, a.cfg, a.logger, f.shutdownTimeout, nil)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default 127.0.0.1:8080)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics at /metrics on this address")
	cmd.Flags().DurationVar(&f.shutdownTimeout, "shutdown-timeout", 0, "time to keep the listener open after a shutdown signal")
	return cmd
}

// runEcho serves until ctx is done. ready, if set, is called with the
// bound address once the listener is open.
func runEcho(ctx context.Context, cfg config, logger wsstream.Logger, shutdownTimeout time.Duration, ready func(net.Addr)) error {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", cfg.Addr)
	}

	reg := prometheus.NewRegistry()
	connOpts := append(connOptions(cfg, logger), wsstream.MetricsOption(reg))

	server, err := wsstream.New(addr,
		wsstream.ServerLoggerOption(logger),
		wsstream.ServerConnOption(connOpts...),
		wsstream.ServerShutdownTimeoutOption(shutdownTimeout),
	)
	if err != nil {
		return errors.Wrap(err, "listen")
	}

	group, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
		}

		group.Go(func() error {
			logger.Info("metrics server started", "addr", cfg.MetricsAddr)
			err := metricsServer.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errors.Wrap(err, "metrics server")
		})
		group.Go(func() error {
			<-ctx.Done()
			return metricsServer.Close()
		})
	}

	if ready != nil {
		ready(server.Addr())
	}

	group.Go(func() error {
		err := server.Serve(ctx, echoHandler(logger))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return group.Wait()
}

// echoHandler sends every received message back on the same connection.
func echoHandler(logger wsstream.Logger) wsstream.Handler {
	return wsstream.HandlerFunc(func(ctx context.Context, conn *wsstream.Conn) {
		for {
			msg, err := conn.Receive(ctx)
			if err != nil {
				logger.Debug("echo connection finished", "addr", conn.Addr(), "error", err)
				return
			}
			if err := conn.SendBlocking(ctx, msg); err != nil {
				logger.Debug("echo failed", "addr", conn.Addr(), "error", err)
				return
			}
		}
	})
}
