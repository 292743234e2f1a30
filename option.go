package wsstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorAction defines the action to take when an error occurs.
type ErrorAction int

const (
	// Disconnect closes the connection when an error occurs.
	Disconnect ErrorAction = iota
	// Continue drops the offending frame and keeps the connection.
	Continue
)

// Framing selects how outbound payloads above ChunkThreshold are chunked.
type Framing int

const (
	// FramingSequential writes chunk frames that carry only total_chunks.
	FramingSequential Framing = iota
	// FramingMultiplexed writes stream chunk frames under a fresh stream id.
	FramingMultiplexed
)

func (f Framing) String() string {
	switch f {
	case FramingSequential:
		return "sequential"
	case FramingMultiplexed:
		return "multiplexed"
	default:
		return "unknown"
	}
}

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	// onError is called for inbound framing and protocol errors.
	// Returns Disconnect to close the connection, Continue to drop the frame.
	onError func(error) ErrorAction

	framing       Framing
	bufferSize    int           // size of the request and response channels
	maxReadLength int           // maximum size of a single inbound frame
	heartbeat     time.Duration // ping interval, 0 disables keep-alive
	writeTimeout  time.Duration // deadline for a single frame write

	registerer prometheus.Registerer
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// Without it, message bodies are sent and received as-is.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// BufferSizeOption returns an Option that sets the capacity of the request
// and response channels. Requests beyond it wait in the send queue.
func BufferSizeOption(size int) Option {
	return func(o *options) {
		o.bufferSize = size
	}
}

// HeartbeatOption returns an Option that enables keep-alive pings.
// The read deadline is heartbeat * 2, extended by every frame and pong.
// Pings keep going out while an inbound message waits for Receive, but
// frames behind it are not read until the application takes it.
func HeartbeatOption(heartbeat time.Duration) Option {
	return func(o *options) {
		o.heartbeat = heartbeat
	}
}

// MessageMaxSize returns an Option that sets the maximum inbound frame size.
// Frames larger than this size cannot be received.
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxReadLength = size
	}
}

// OnErrorOption returns an Option that sets the error callback.
// The callback is invoked for malformed frames and reassembly errors.
// Return Disconnect to close the connection, or Continue to drop the frame.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// FramingOption returns an Option that selects the outbound chunk framing.
// Inbound frames of either protocol are always accepted.
func FramingOption(framing Framing) Option {
	return func(o *options) {
		o.framing = framing
	}
}

// WriteTimeoutOption returns an Option that bounds every frame write.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// MetricsOption returns an Option that registers connection counters with reg.
func MetricsOption(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
