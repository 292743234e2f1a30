// Package wsstream is the message transport layer of a client exchanging
// request/response traffic with a remote host over one persistent
// WebSocket connection.
//
// Payloads above ChunkThreshold are split into ChunkSize frames and
// reassembled on the receiving side, either sequentially (one message in
// flight) or multiplexed by stream id. A Conn owns the connection and runs
// a single engine goroutine that writes requests and demultiplexes inbound
// frames; the application talks to it only through Send and Receive.
package wsstream

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Errors returned when creating a connection.
var (
	// ErrInvalidTransport is returned when no transport is provided.
	ErrInvalidTransport = errors.New("invalid transport")
	// ErrInvalidFraming is returned for an unknown Framing value.
	ErrInvalidFraming = errors.New("invalid framing")
)

// errLocalClose ends the engine loop after this side wrote a close frame.
var errLocalClose = errors.New("closed locally")

// Default configuration values.
const (
	// defaultBufferSize is the default capacity of the request and response channels.
	defaultBufferSize = 1
	// defaultMaxReadLength admits the largest chunk frame the protocol allows
	// and complete frames up to the full reassembly bound (64 MiB).
	defaultMaxReadLength = MaxPayloadSize + StreamChunkHeaderSize
	// defaultWriteTimeout bounds a single frame write.
	defaultWriteTimeout = 10 * time.Second

	// streamBufferSize is the capacity of the incoming stream handle channel.
	streamBufferSize = 4
	// closeTimeout bounds the close handshake in Close and teardown.
	closeTimeout = time.Second
	// maxCloseReason is the longest close reason a control frame can carry.
	maxCloseReason = 123
)

type requestKind int

const (
	requestMessage requestKind = iota
	requestStream
	requestDisconnect
	requestClose
)

// request is one unit of work for the engine. data is the encoded body.
type request struct {
	kind  requestKind
	msg   Message
	data  []byte
	cause string
}

type result struct {
	msg Message
	err error
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

// connState is owned by the engine goroutine.
type connState struct {
	sequential   *ChunkReassemblyBuffer
	multiplexed  *ReassemblyBuffer
	senders      map[uint32]*streamSender
	nextStreamID uint32

	heartbeat <-chan time.Time
	pings     <-chan []byte

	closeSent bool // a close frame has been written
	writable  bool // the transport may still accept frames
}

func (s *connState) newStreamID() uint32 {
	id := s.nextStreamID
	s.nextStreamID++
	return id
}

// Conn is the client side of a framed request/response connection.
// It owns the transport and all reassembly state; Send and Receive only
// exchange messages with the engine goroutine started by Run.
type Conn struct {
	transport Transport
	logger    Logger
	metrics   *metrics

	opts options

	requests  chan request
	responses chan result
	streams   chan *StreamHandle
	done      chan struct{}

	// abandoned is closed by Close; the engine stops waiting on the
	// application once it is.
	abandoned    chan struct{}
	abandonOnce  sync.Once
	shutdownOnce sync.Once

	mu       sync.Mutex
	flushMu  sync.Mutex
	queue    []request
	flushing bool
	terminal error
	cancel   context.CancelFunc

	running atomic.Bool
	closed  atomic.Bool
}

// NewConn creates a new connection engine around the given transport.
// It applies the provided options and validates them before returning.
func NewConn(t Transport, opt ...Option) (*Conn, error) {
	if t == nil {
		return nil, ErrInvalidTransport
	}

	var opts options
	for _, o := range opt {
		o(&opts)
	}

	err := checkOptions(&opts)
	if err != nil {
		return nil, err
	}

	return newConnWithOptions(t, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.bufferSize <= 0 {
		opts.bufferSize = defaultBufferSize
	}

	if opts.maxReadLength <= 0 {
		opts.maxReadLength = defaultMaxReadLength
	}

	if opts.heartbeat < 0 {
		opts.heartbeat = 0
	}

	if opts.writeTimeout <= 0 {
		opts.writeTimeout = defaultWriteTimeout
	}

	if opts.framing != FramingSequential && opts.framing != FramingMultiplexed {
		return ErrInvalidFraming
	}

	if opts.codec == nil {
		opts.codec = rawCodec{}
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newConnWithOptions creates a new Conn with the given options.
func newConnWithOptions(t Transport, opts options) *Conn {
	return &Conn{
		transport: t,
		logger:    opts.logger,
		metrics:   newMetrics(opts.registerer),
		opts:      opts,
		requests:  make(chan request, opts.bufferSize),
		responses: make(chan result, opts.bufferSize),
		streams:   make(chan *StreamHandle, streamBufferSize),
		done:      make(chan struct{}),
		abandoned: make(chan struct{}),
	}
}

// Run starts the engine. It spawns a reader goroutine that only reads
// frames and the engine loop that owns every write and all reassembly
// state, and blocks until the connection ends.
//
// Run returns nil after a local Close or Disconnect, the context error on
// cancellation and the cause otherwise. It may be called once.
func (c *Conn) Run(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	if c.closed.Load() {
		c.shutdown(ErrConnectionClosed)
		return ErrConnectionClosed
	}

	c.logger.Info("connection established", "addr", c.Addr())
	c.logger.Debug("connection options", "addr", c.Addr(),
		"buffer_size", c.opts.bufferSize,
		"max_read_length", c.opts.maxReadLength,
		"heartbeat", c.opts.heartbeat,
		"framing", c.opts.framing.String())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	group, child := errgroup.WithContext(ctx)
	inbound := make(chan inboundFrame, 1)
	pings := make(chan []byte, 1)

	c.transport.SetReadLimit(int64(c.opts.maxReadLength))
	c.transport.SetPingHandler(func(appData string) error {
		c.extendReadDeadline()
		select {
		case pings <- []byte(appData):
		case <-child.Done():
		}
		return nil
	})
	c.transport.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	group.Go(func() error {
		return c.readLoop(child, inbound)
	})

	group.Go(func() error {
		return c.loop(child, inbound, pings)
	})

	err := group.Wait()
	if errors.Is(err, errLocalClose) {
		err = nil
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Info("connection closed with error", "addr", c.Addr(), "error", err)
	} else {
		c.logger.Info("connection closed", "addr", c.Addr())
	}

	return err
}

// Close gracefully closes the connection: it asks the engine to write a
// close frame, waits briefly for it to stop and then cancels it.
// Messages still in the send queue are dropped. Safe to call multiple times.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.abandonOnce.Do(func() { close(c.abandoned) })

	if !c.running.Load() {
		c.shutdown(ErrConnectionClosed)
		return c.transport.Close()
	}

	select {
	case c.requests <- request{kind: requestClose}:
	case <-c.done:
	case <-time.After(closeTimeout):
	}

	select {
	case <-c.done:
	case <-time.After(closeTimeout):
	}

	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Disconnect sends every queued message, then a single close frame
// carrying cause, and waits for the engine to stop. Nothing is written
// after the close frame.
func (c *Conn) Disconnect(ctx context.Context, cause string) error {
	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}

	if !c.running.Load() {
		c.shutdown(ErrDisconnected)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, truncateReason(cause))
		_ = c.transport.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
		return c.transport.Close()
	}

	c.mu.Lock()
	c.queue = append(c.queue, request{kind: requestDisconnect, cause: cause})
	c.mu.Unlock()

	if err := c.flush(ctx); err != nil {
		return err
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsClosed returns true if the connection has been closed locally or the
// engine has stopped.
func (c *Conn) IsClosed() bool {
	return c.closed.Load() || c.isDone()
}

// Done returns a channel closed once the engine has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.transport.RemoteAddr()
}

// Send encodes message and hands it to the engine without blocking.
// When the request channel is full the message waits in a FIFO send queue
// that later Send, Flush and Receive calls drain.
//
// Returns:
//   - nil: message was queued or handed off (not yet written)
//   - ErrConnectionClosed: Close or Disconnect was called
//   - ErrChannelClosed: the engine has stopped; use Flush to take back queued messages
//   - *PayloadTooLargeError: the encoded message exceeds MaxPayloadSize
//   - encoding error: if codec.Encode fails
func (c *Conn) Send(message Message) error {
	return c.enqueue(requestMessage, message)
}

// SendStream is like Send, but the message is announced with a stream
// header and always chunked, so the peer can consume it incrementally
// through ReceiveStream.
func (c *Conn) SendStream(message Message) error {
	return c.enqueue(requestStream, message)
}

// SendBlocking sends message and waits until it and everything queued
// before it have been handed to the engine, or ctx is done.
func (c *Conn) SendBlocking(ctx context.Context, message Message) error {
	if err := c.enqueue(requestMessage, message); err != nil {
		return err
	}
	return c.flush(ctx)
}

// Flush waits until the send queue is empty. If the engine stops first it
// returns the messages that were never handed off with ErrChannelClosed,
// and the queue is left empty.
func (c *Conn) Flush(ctx context.Context) ([]Message, error) {
	err := c.flush(ctx)
	if errors.Is(err, ErrChannelClosed) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.takeQueueLocked(), err
	}
	return nil, err
}

// Pending returns the number of messages waiting in the send queue.
func (c *Conn) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Receive returns the next inbound message. Streamed messages are
// assembled transparently. After the engine stops, buffered messages and
// stream handles are returned first, then the terminal error once and
// ErrChannelClosed afterwards.
func (c *Conn) Receive(ctx context.Context) (Message, error) {
	c.drain()

	streams := c.streams
	for {
		select {
		case r, ok := <-c.responses:
			if !ok {
				// Handles queued before shutdown come ahead of the terminal error.
				if h, ok := <-c.streams; ok {
					return c.assemble(ctx, h)
				}
				return nil, c.takeTerminal()
			}
			return r.msg, r.err
		case h, ok := <-streams:
			if !ok {
				streams = nil
				continue
			}
			return c.assemble(ctx, h)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Conn) assemble(ctx context.Context, h *StreamHandle) (Message, error) {
	payload, err := h.Assemble(ctx)
	if err != nil {
		return nil, err
	}
	return c.opts.codec.Decode(payload)
}

// ReceiveStream returns the handle of the next incoming stream.
func (c *Conn) ReceiveStream(ctx context.Context) (*StreamHandle, error) {
	c.drain()

	select {
	case h, ok := <-c.streams:
		if !ok {
			return nil, ErrChannelClosed
		}
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) enqueue(kind requestKind, message Message) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if c.isDone() {
		return ErrChannelClosed
	}

	data, err := c.opts.codec.Encode(message)
	if err != nil {
		return err
	}
	// Anything this large is chunked, and the peer rejects more than MaxTotalChunks.
	if len(data) > MaxPayloadSize {
		return &PayloadTooLargeError{Size: len(data), Max: MaxPayloadSize}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, request{kind: kind, msg: message, data: data})
	if c.flushing {
		return nil
	}
	return c.drainLocked()
}

// drain opportunistically moves queued requests to the engine.
func (c *Conn) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.flushing {
		_ = c.drainLocked()
	}
}

// drainLocked hands queued requests to the engine until the channel is
// full. c.mu must be held.
func (c *Conn) drainLocked() error {
	for len(c.queue) > 0 {
		if c.isDone() {
			return ErrChannelClosed
		}
		select {
		case c.requests <- c.queue[0]:
			c.queue[0] = request{}
			c.queue = c.queue[1:]
		default:
			return nil
		}
	}
	return nil
}

// flush hands every queued request to the engine, blocking as needed.
// While it runs, enqueue only appends, so FIFO order is kept.
func (c *Conn) flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	c.flushing = true
	defer func() {
		c.flushing = false
		c.mu.Unlock()
	}()

	for len(c.queue) > 0 {
		req := c.queue[0]
		c.mu.Unlock()
		err := c.push(ctx, req)
		c.mu.Lock()
		if err != nil {
			return err
		}
		c.queue[0] = request{}
		c.queue = c.queue[1:]
	}
	return nil
}

func (c *Conn) push(ctx context.Context, req request) error {
	if c.isDone() {
		return ErrChannelClosed
	}
	select {
	case c.requests <- req:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// takeQueueLocked empties the send queue and returns its messages.
func (c *Conn) takeQueueLocked() []Message {
	var messages []Message
	for _, req := range c.queue {
		if req.msg != nil {
			messages = append(messages, req.msg)
		}
	}
	c.queue = nil
	return messages
}

func (c *Conn) takeTerminal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.terminal
	c.terminal = nil
	if err == nil {
		return ErrChannelClosed
	}
	return err
}

func (c *Conn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// shutdown records the terminal error and closes the engine channels.
// Only the engine sends on them, so it must not be running.
func (c *Conn) shutdown(terminal error) {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.terminal = terminal
		c.mu.Unlock()
		close(c.done)
		close(c.responses)
		close(c.streams)
	})
}

// readLoop feeds transport frames to the engine loop. It reports read
// errors through the channel and never writes to the transport.
func (c *Conn) readLoop(ctx context.Context, inbound chan<- inboundFrame) error {
	for {
		c.extendReadDeadline()
		messageType, data, err := c.transport.ReadMessage()
		select {
		case inbound <- inboundFrame{messageType: messageType, data: data, err: err}:
		case <-ctx.Done():
			return nil
		}
		if err != nil {
			c.logger.Debug("read error", "addr", c.Addr(), "error", err)
			return nil
		}
	}
}

func (c *Conn) extendReadDeadline() {
	if c.opts.heartbeat > 0 {
		_ = c.transport.SetReadDeadline(time.Now().Add(c.opts.heartbeat * 2))
	}
}

// loop is the engine. It waits on application requests, inbound frames,
// peer pings and the heartbeat ticker, and is the only goroutine that writes.
func (c *Conn) loop(ctx context.Context, inbound <-chan inboundFrame, pings <-chan []byte) (err error) {
	st := &connState{
		sequential:  NewChunkReassemblyBuffer(),
		multiplexed: NewReassemblyBuffer(),
		senders:     make(map[uint32]*streamSender),
		pings:       pings,
		writable:    true,
	}
	defer func() {
		c.teardown(st, err)
	}()

	if c.opts.heartbeat > 0 {
		ticker := time.NewTicker(c.opts.heartbeat)
		defer ticker.Stop()
		st.heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.requests:
			if err := c.processRequest(st, req); err != nil {
				return err
			}
		case in := <-inbound:
			if err := c.processInbound(ctx, st, in); err != nil {
				return err
			}
		case data := <-st.pings:
			if err := c.writeControl(st, websocket.PongMessage, data); err != nil {
				return err
			}
		case <-st.heartbeat:
			if err := c.writeControl(st, websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// processRequest writes one request. A request's frames are written
// back to back, so the peer never sees two messages interleaved.
func (c *Conn) processRequest(st *connState, req request) error {
	switch req.kind {
	case requestDisconnect:
		return c.closeLocal(st, req.cause)
	case requestClose:
		return c.closeLocal(st, "")
	}

	var frames [][]byte
	switch {
	case req.kind == requestStream:
		id := st.newStreamID()
		frames = append(frames, WrapStreamHeader(id, uint64(len(req.data))))
		frames = append(frames, streamChunkFrames(req.data, id)...)
	case c.opts.framing == FramingMultiplexed:
		frames = EncodeStreamFrames(req.data, st.newStreamID())
	default:
		frames = EncodeFrames(req.data)
	}

	for _, frame := range frames {
		if err := c.write(st, frame); err != nil {
			return err
		}
	}

	c.metrics.message("out")
	c.logger.Debug("request sent", "addr", c.Addr(), "bytes", len(req.data), "frames", len(frames))
	return nil
}

func (c *Conn) processInbound(ctx context.Context, st *connState, in inboundFrame) error {
	if in.err != nil {
		st.writable = false
		var closeErr *websocket.CloseError
		if errors.As(in.err, &closeErr) {
			return errors.Wrapf(ErrDisconnected, "peer closed (%d %s)", closeErr.Code, closeErr.Text)
		}
		return errors.Wrap(in.err, "read frame")
	}

	switch in.messageType {
	case websocket.BinaryMessage, websocket.TextMessage:
		return c.handleFrame(ctx, st, in.data)
	default:
		return nil
	}
}

// handleFrame routes one data frame through the matching reassembly path
// and forwards completed payloads to the application.
func (c *Conn) handleFrame(ctx context.Context, st *connState, data []byte) error {
	frame, err := ParseFrame(data)
	if err != nil {
		return c.protocolError(err)
	}
	c.metrics.frameReceived(frame.Kind)

	switch frame.Kind {
	case FrameComplete:
		return c.deliver(ctx, st, frame.Payload)

	case FrameChunk:
		payload, ok, err := st.sequential.ReceiveChunk(frame.TotalChunks, frame.Payload)
		if err != nil {
			return c.protocolError(err)
		}
		if ok {
			return c.deliver(ctx, st, payload)
		}

	case FrameStreamHeader:
		return c.openStream(ctx, st, frame)

	case FrameStreamChunk:
		if sender, ok := st.senders[frame.StreamID]; ok {
			if len(frame.Payload) > ChunkSize {
				sender.close()
				delete(st.senders, frame.StreamID)
				return c.protocolError(&ChunkTooLargeError{
					StreamID: frame.StreamID,
					Index:    frame.Index,
					Size:     len(frame.Payload),
					Max:      ChunkSize,
				})
			}
			c.forwardStreamChunk(st, sender, frame)
			return nil
		}
		payload, ok, err := st.multiplexed.ReceiveChunk(frame.StreamID, frame.Index, frame.TotalChunks, frame.Payload)
		if err != nil {
			return c.protocolError(err)
		}
		if ok {
			return c.deliver(ctx, st, payload)
		}
	}
	return nil
}

// deliver hands a reassembled message to the application. While it waits
// it keeps serving requests, pongs and keep-alive pings, but reads no
// further frames.
func (c *Conn) deliver(ctx context.Context, st *connState, payload []byte) error {
	msg, err := c.opts.codec.Decode(payload)
	if err != nil {
		return c.protocolError(errors.Wrap(err, "decode message"))
	}
	c.metrics.message("in")

	for {
		select {
		case c.responses <- result{msg: msg}:
			return nil
		case req := <-c.requests:
			// Keep writing while the application is busy sending.
			if err := c.processRequest(st, req); err != nil {
				return err
			}
		case data := <-st.pings:
			if err := c.writeControl(st, websocket.PongMessage, data); err != nil {
				return err
			}
		case <-st.heartbeat:
			if err := c.writeControl(st, websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-c.abandoned:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// openStream pairs a stream header with a new handle. At most
// MaxConcurrentStreams senders stay open; one more evicts an existing one.
// Like deliver, it keeps serving requests, pongs and keep-alive pings
// until the handle is taken.
func (c *Conn) openStream(ctx context.Context, st *connState, frame Frame) error {
	if old, ok := st.senders[frame.StreamID]; ok {
		old.close()
		delete(st.senders, frame.StreamID)
	}
	if len(st.senders) >= MaxConcurrentStreams {
		for id, s := range st.senders {
			c.logger.Warn("too many open streams, evicting one", "addr", c.Addr(), "stream_id", id)
			s.close()
			delete(st.senders, id)
			break
		}
	}

	h, s := newStreamPair(frame.StreamID, frame.TotalBytes)
	st.senders[frame.StreamID] = s

	for {
		select {
		case c.streams <- h:
			return nil
		case req := <-c.requests:
			if err := c.processRequest(st, req); err != nil {
				return err
			}
		case data := <-st.pings:
			if err := c.writeControl(st, websocket.PongMessage, data); err != nil {
				return err
			}
		case <-st.heartbeat:
			if err := c.writeControl(st, websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-c.abandoned:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) forwardStreamChunk(st *connState, s *streamSender, frame Frame) {
	if err := s.send(frame.Payload); err != nil {
		c.logger.Warn("stream chunk dropped", "addr", c.Addr(), "stream_id", frame.StreamID, "error", err)
		s.close()
		delete(st.senders, frame.StreamID)
		return
	}
	if frame.Index+1 == frame.TotalChunks {
		s.close()
		delete(st.senders, frame.StreamID)
		c.metrics.message("in")
	}
}

// protocolError consults onError for an inbound framing or reassembly error.
func (c *Conn) protocolError(err error) error {
	c.metrics.protocolError()
	c.logger.Warn("protocol error", "addr", c.Addr(), "error", err)
	if c.opts.onError(err) == Continue {
		return nil
	}
	return err
}

// write sends one data frame with a deadline.
func (c *Conn) write(st *connState, frame []byte) error {
	_ = c.transport.SetWriteDeadline(time.Now().Add(c.opts.writeTimeout))

	if err := c.transport.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		st.writable = false
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		return errors.Wrap(err, "write frame")
	}
	// Frame tags and FrameKind values coincide.
	c.metrics.frameSent(FrameKind(frame[0]).String())
	return nil
}

func (c *Conn) writeControl(st *connState, messageType int, data []byte) error {
	deadline := time.Now().Add(c.opts.writeTimeout)
	if err := c.transport.WriteControl(messageType, data, deadline); err != nil {
		st.writable = false
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		return errors.Wrap(err, "write control frame")
	}
	c.metrics.frameSent(controlKind(messageType))
	return nil
}

// closeLocal writes the one close frame this side sends.
func (c *Conn) closeLocal(st *connState, cause string) error {
	st.closeSent = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, truncateReason(cause))
	if err := c.writeControl(st, websocket.CloseMessage, msg); err != nil {
		return err
	}
	return errLocalClose
}

// teardown runs on the engine goroutine when the loop exits. It ends every
// open stream, sends a best-effort close frame if none was sent and the
// transport is still writable, and publishes the terminal error.
func (c *Conn) teardown(st *connState, cause error) {
	for id, s := range st.senders {
		s.close()
		delete(st.senders, id)
	}

	if st.writable && !st.closeSent {
		msg := websocket.FormatCloseMessage(closeCode(cause), "")
		if err := c.transport.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err == nil {
			c.metrics.frameSent("close")
		}
	}
	_ = c.transport.Close()

	c.shutdown(terminalError(cause))
}

// terminalError maps the loop exit cause to the error the application sees.
func terminalError(cause error) error {
	switch {
	case errors.Is(cause, errLocalClose):
		return ErrDisconnected
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return ErrConnectionClosed
	default:
		return cause
	}
}

func closeCode(cause error) int {
	switch {
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded),
		errors.Is(cause, ErrChannelClosed):
		return websocket.CloseGoingAway
	default:
		return websocket.CloseProtocolError
	}
}

func controlKind(messageType int) string {
	switch messageType {
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	case websocket.CloseMessage:
		return "close"
	default:
		return "control"
	}
}

func truncateReason(cause string) string {
	if len(cause) > maxCloseReason {
		return cause[:maxCloseReason]
	}
	return cause
}
