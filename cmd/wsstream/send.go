package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/wsstream"
)

type sendFlags struct {
	url    string
	file   string
	count  int
	stream bool
}

func newSendCmd(a *app) *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a payload and print the size of every response",
		Long: `Send reads a payload from --file or standard input, sends it --count
times over one connection and prints the size of each response. Payloads
above 512 KiB are chunked; --stream announces them as incremental streams.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("url") {
				a.cfg.URL = f.url
			}
			if f.count < 1 {
				return errors.Errorf("--count must be at least 1, got %d", f.count)
			}

			payload, err := readPayload(f.file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSend(ctx, a.cfg, a.logger, payload, f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&f.url, "url", "", "WebSocket URL of the host (default ws://127.0.0.1:8080/)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "payload file, standard input if empty or -")
	cmd.Flags().IntVarP(&f.count, "count", "n", 1, "number of times to send the payload")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "send as incremental streams")
	return cmd
}

func readPayload(file string, stdin io.Reader) ([]byte, error) {
	if file == "" || file == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(file)
	return data, errors.Wrapf(err, "read %s", file)
}

// runSend sends payload f.count times while receiving the responses
// concurrently, then disconnects.
func runSend(ctx context.Context, cfg config, logger wsstream.Logger, payload []byte, f sendFlags, out io.Writer) error {
	conn, err := wsstream.Dial(ctx, cfg.URL, nil, connOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- conn.Run(runCtx)
	}()

	msg := wsstream.Bytes(payload)
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		for i := 0; i < f.count; i++ {
			send := conn.Send
			if f.stream {
				send = conn.SendStream
			}
			if err := send(msg); err != nil {
				return errors.Wrap(err, "send")
			}
		}
		_, err := conn.Flush(gctx)
		return errors.Wrap(err, "flush")
	})

	group.Go(func() error {
		for i := 1; i <= f.count; i++ {
			resp, err := conn.Receive(gctx)
			if err != nil {
				return errors.Wrapf(err, "receive response %d", i)
			}
			fmt.Fprintf(out, "response %d: %d bytes\n", i, resp.Length())
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		_ = conn.Close()
		<-runErr
		return err
	}

	if err := conn.Disconnect(ctx, "done"); err != nil {
		return errors.Wrap(err, "disconnect")
	}
	return <-runErr
}
