package wsstream

import (
	"context"
	"io"
	"sync"
)

// maxPrealloc caps the buffer Assemble reserves up front, so a hostile
// total_bytes header cannot force a huge allocation.
const maxPrealloc = 50 * 1024 * 1024

// StreamHandle is the consumer side of an incoming stream announced by a
// stream header frame. Chunks are delivered as they arrive.
//
// Consume it with Next for incremental processing, or with Assemble to
// wait for the complete payload. Close releases it early.
type StreamHandle struct {
	id         uint32
	totalBytes uint64
	chunks     chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// streamSender is the engine side of a StreamHandle.
type streamSender struct {
	chunks    chan []byte
	done      <-chan struct{}
	closeOnce sync.Once
}

// newStreamPair creates a connected handle and sender. The chunk buffer is
// sized so that a conforming peer never fills it.
func newStreamPair(streamID uint32, totalBytes uint64) (*StreamHandle, *streamSender) {
	capacity := uint64(1)
	if totalBytes > 0 {
		capacity = (totalBytes + ChunkSize - 1) / ChunkSize
	}
	if capacity > uint64(MaxTotalChunks) {
		capacity = uint64(MaxTotalChunks)
	}

	chunks := make(chan []byte, capacity)
	done := make(chan struct{})
	h := &StreamHandle{
		id:         streamID,
		totalBytes: totalBytes,
		chunks:     chunks,
		done:       done,
	}
	return h, &streamSender{chunks: chunks, done: done}
}

// StreamID returns the id of the stream on the wire.
func (h *StreamHandle) StreamID() uint32 {
	return h.id
}

// TotalBytes returns the number of bytes announced by the stream header.
func (h *StreamHandle) TotalBytes() uint64 {
	return h.totalBytes
}

// Next returns the next chunk, or io.EOF once the sender is finished.
func (h *StreamHandle) Next(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-h.chunks:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-h.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Assemble waits for every chunk and returns the concatenated payload.
// It returns *TruncatedError if the sender finishes before TotalBytes
// bytes have been delivered.
func (h *StreamHandle) Assemble(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 0, min(h.totalBytes, maxPrealloc))
	for {
		chunk, err := h.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}

	if uint64(len(buf)) < h.totalBytes {
		return nil, &TruncatedError{Received: uint64(len(buf)), Expected: h.totalBytes}
	}
	return buf, nil
}

// Close abandons the stream. Later chunks are discarded by the engine.
func (h *StreamHandle) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// send hands one chunk to the handle without blocking.
func (s *streamSender) send(chunk []byte) error {
	select {
	case <-s.done:
		return ErrChannelClosed
	default:
	}

	select {
	case s.chunks <- chunk:
		return nil
	default:
		return ErrBufferFull
	}
}

// close marks the end of the stream for the handle.
func (s *streamSender) close() {
	s.closeOnce.Do(func() { close(s.chunks) })
}
