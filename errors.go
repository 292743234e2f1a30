package wsstream

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by connection operations.
var (
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrChannelClosed is returned when the engine side of a channel is gone.
	ErrChannelClosed = errors.New("channel closed")
	// ErrDisconnected is delivered once a close frame has been exchanged.
	ErrDisconnected = errors.New("disconnected")
	// ErrAlreadyRunning is returned when Run is called twice on the same Conn.
	ErrAlreadyRunning = errors.New("connection already running")
	// ErrBufferFull is returned when a bounded buffer cannot accept more data.
	ErrBufferFull = errors.New("buffer full")
)

// Framing, protocol and resource errors. Each typed error below matches
// its sentinel with errors.Is.
var (
	ErrMessageTooShort          = errors.New("message too short")
	ErrUnknownMessageType       = errors.New("unknown message type")
	ErrZeroTotalChunks          = errors.New("total_chunks is zero")
	ErrTotalChunksTooLarge      = errors.New("total_chunks too large")
	ErrTotalChunksMismatch      = errors.New("total_chunks mismatch")
	ErrDuplicateChunk           = errors.New("duplicate chunk")
	ErrIndexOutOfRange          = errors.New("chunk index out of range")
	ErrTooManyConcurrentStreams = errors.New("too many concurrent streams")
	ErrTruncated                = errors.New("stream truncated")
	ErrChunkTooLarge            = errors.New("chunk too large")
	ErrPayloadTooLarge          = errors.New("payload too large")
)

// MessageTooShortError reports a frame shorter than its header.
type MessageTooShortError struct {
	Expected int
	Actual   int
}

func (e *MessageTooShortError) Error() string {
	return fmt.Sprintf("message too short: expected at least %d bytes, got %d", e.Expected, e.Actual)
}

func (e *MessageTooShortError) Is(target error) bool { return target == ErrMessageTooShort }

// UnknownMessageTypeError reports an unrecognized frame tag.
type UnknownMessageTypeError struct {
	Tag byte
}

func (e *UnknownMessageTypeError) Error() string {
	return fmt.Sprintf("unknown message type prefix: 0x%02x", e.Tag)
}

func (e *UnknownMessageTypeError) Is(target error) bool { return target == ErrUnknownMessageType }

// TotalChunksTooLargeError reports a declared chunk count above MaxTotalChunks.
type TotalChunksTooLargeError struct {
	Total uint32
	Max   uint32
}

func (e *TotalChunksTooLargeError) Error() string {
	return fmt.Sprintf("total_chunks %d exceeds maximum %d", e.Total, e.Max)
}

func (e *TotalChunksTooLargeError) Is(target error) bool { return target == ErrTotalChunksTooLarge }

// ChunkTooLargeError reports an inbound chunk carrying more than ChunkSize bytes.
type ChunkTooLargeError struct {
	StreamID uint32
	Index    uint32
	Size     int
	Max      int
}

func (e *ChunkTooLargeError) Error() string {
	return fmt.Sprintf("chunk %d of stream %d is %d bytes, maximum is %d", e.Index, e.StreamID, e.Size, e.Max)
}

func (e *ChunkTooLargeError) Is(target error) bool { return target == ErrChunkTooLarge }

// PayloadTooLargeError reports an outbound payload that would need more
// than MaxTotalChunks chunks.
type PayloadTooLargeError struct {
	Size int
	Max  int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds maximum %d", e.Size, e.Max)
}

func (e *PayloadTooLargeError) Is(target error) bool { return target == ErrPayloadTooLarge }

// TotalChunksMismatchError reports a chunk whose declared total differs
// from the one adopted for the message in progress.
type TotalChunksMismatchError struct {
	StreamID uint32
	Expected uint32
	Actual   uint32

	multiplexed bool
}

func (e *TotalChunksMismatchError) Error() string {
	if e.multiplexed {
		return fmt.Sprintf("total_chunks mismatch for stream %d (expected %d, got %d)", e.StreamID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("total_chunks mismatch (expected %d, got %d)", e.Expected, e.Actual)
}

func (e *TotalChunksMismatchError) Is(target error) bool { return target == ErrTotalChunksMismatch }

// DuplicateChunkError reports a chunk index received twice.
type DuplicateChunkError struct {
	StreamID uint32
	Index    uint32
}

func (e *DuplicateChunkError) Error() string {
	return fmt.Sprintf("duplicate chunk index %d for stream %d", e.Index, e.StreamID)
}

func (e *DuplicateChunkError) Is(target error) bool { return target == ErrDuplicateChunk }

// IndexOutOfRangeError reports a chunk index not below its declared total.
type IndexOutOfRangeError struct {
	StreamID uint32
	Index    uint32
	Total    uint32
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("chunk index %d out of range for stream %d (total %d)", e.Index, e.StreamID, e.Total)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// TooManyConcurrentStreamsError reports that admission control rejected a new stream.
type TooManyConcurrentStreamsError struct {
	Count int
	Max   int
}

func (e *TooManyConcurrentStreamsError) Error() string {
	return fmt.Sprintf("too many concurrent streams (%d), maximum is %d", e.Count, e.Max)
}

func (e *TooManyConcurrentStreamsError) Is(target error) bool {
	return target == ErrTooManyConcurrentStreams
}

// TruncatedError reports a stream whose source closed before delivering
// the declared number of bytes.
type TruncatedError struct {
	Received uint64
	Expected uint64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("stream truncated: received %d of %d bytes", e.Received, e.Expected)
}

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }
