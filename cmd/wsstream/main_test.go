package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEcho runs an echo host on a random port until the test ends.
func startEcho(t *testing.T) string {
	t.Helper()

	logger, _, err := newLogger("text", "error", io.Discard)
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- runEcho(ctx, cfg, logger, 0, func(addr net.Addr) { addrCh <- addr })
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("echo host did not stop")
		}
	})

	select {
	case addr := <-addrCh:
		return fmt.Sprintf("ws://%s/", addr)
	case err := <-done:
		t.Fatalf("echo host failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("echo host did not start")
	}
	return ""
}

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetArgs(args)
	root.SetIn(bytes.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)

	err := root.Execute()
	return out.String(), err
}

func TestSendEcho(t *testing.T) {
	url := startEcho(t)

	out, err := execute(t, []byte("hello"), "send", "--url", url, "--count", "2", "--log-level", "error")
	require.NoError(t, err)
	require.Equal(t, "response 1: 5 bytes\nresponse 2: 5 bytes\n", out)
}

func TestSendEchoChunked(t *testing.T) {
	url := startEcho(t)
	payload := bytes.Repeat([]byte{0x5A}, 600*1024)

	for _, args := range [][]string{
		{"send", "--url", url},
		{"send", "--url", url, "--framing", "multiplexed"},
		{"send", "--url", url, "--stream", "--count", "3"},
	} {
		args = append(args, "--log-level", "error")
		out, err := execute(t, payload, args...)
		require.NoError(t, err, strings.Join(args, " "))
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			require.True(t, strings.HasSuffix(line, ": 614400 bytes"), line)
		}
	}
}

func TestSendFromFile(t *testing.T) {
	url := startEcho(t)
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))

	out, err := execute(t, nil, "send", "--url", url, "--file", path, "--log-level", "error")
	require.NoError(t, err)
	require.Equal(t, "response 1: 9 bytes\n", out)
}

func TestSendConfigFile(t *testing.T) {
	url := startEcho(t)
	path := filepath.Join(t.TempDir(), "wsstream.toml")
	body := fmt.Sprintf("url = %q\nframing = \"multiplexed\"\nlog_format = \"json\"\nlog_level = \"error\"\n", url)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := execute(t, []byte("cfg"), "--config", path, "send")
	require.NoError(t, err)
	require.Equal(t, "response 1: 3 bytes\n", out)
}

func TestSendErrors(t *testing.T) {
	_, err := execute(t, nil, "send", "--count", "0")
	require.Error(t, err)

	_, err = execute(t, nil, "--framing", "parallel", "send")
	require.Error(t, err)

	_, err = execute(t, nil, "send", "--file", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	_, err = execute(t, []byte("x"), "send", "--url", "ws://127.0.0.1:1/", "--log-level", "error")
	require.Error(t, err)
}
