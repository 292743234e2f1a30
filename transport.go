package wsstream

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Transport is an ordered, reliable duplex connection carrying discrete
// binary frames plus ping, pong and close control frames.
//
// *websocket.Conn from github.com/gorilla/websocket satisfies it. Message
// types are the websocket package constants. ReadMessage is only called
// from the reader goroutine and every write from the engine goroutine.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// handshakeTimeout bounds the WebSocket opening handshake in Dial.
const handshakeTimeout = 10 * time.Second

// Dial opens a WebSocket connection to url and wraps it in a Conn.
// The caller must call Run to start the engine.
func Dial(ctx context.Context, url string, header http.Header, opt ...Option) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}

	conn, err := NewConn(ws, opt...)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	return conn, nil
}
