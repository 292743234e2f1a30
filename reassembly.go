package wsstream

// ChunkReassemblyBuffer reassembles sequential chunk frames.
//
// It assumes the chunks of one message arrive in order and are never
// interleaved with another message's chunks, which holds when the peer
// writes every message's frames contiguously from a single send loop.
// The zero value is ready to use.
type ChunkReassemblyBuffer struct {
	data        []byte
	totalChunks uint32
	received    uint32
}

// NewChunkReassemblyBuffer returns an idle buffer.
func NewChunkReassemblyBuffer() *ChunkReassemblyBuffer {
	return &ChunkReassemblyBuffer{}
}

// ReceiveChunk appends payload to the message in progress. It returns the
// complete payload with ok set once totalChunks chunks have arrived, and
// resets to idle.
//
// A chunk whose totalChunks differs from the adopted one fails with
// *TotalChunksMismatchError, and a payload above ChunkSize fails with
// *ChunkTooLargeError. Both discard the message in progress.
func (b *ChunkReassemblyBuffer) ReceiveChunk(totalChunks uint32, payload []byte) (complete []byte, ok bool, err error) {
	if totalChunks == 0 {
		return nil, false, ErrZeroTotalChunks
	}
	if totalChunks > MaxTotalChunks {
		return nil, false, &TotalChunksTooLargeError{Total: totalChunks, Max: MaxTotalChunks}
	}

	if len(payload) > ChunkSize {
		err = &ChunkTooLargeError{Index: b.received, Size: len(payload), Max: ChunkSize}
		b.Reset()
		return nil, false, err
	}

	if b.received == 0 {
		b.totalChunks = totalChunks
		b.data = make([]byte, 0, int(totalChunks)*ChunkSize)
	} else if b.totalChunks != totalChunks {
		err = &TotalChunksMismatchError{Expected: b.totalChunks, Actual: totalChunks}
		b.Reset()
		return nil, false, err
	}

	b.data = append(b.data, payload...)
	b.received++

	if b.received < b.totalChunks {
		return nil, false, nil
	}

	complete = b.data
	b.data = nil
	b.received = 0
	b.totalChunks = 0
	return complete, true, nil
}

// InProgress reports whether a message is partially received.
func (b *ChunkReassemblyBuffer) InProgress() bool {
	return b.received > 0
}

// Reset discards the message in progress.
func (b *ChunkReassemblyBuffer) Reset() {
	b.data = nil
	b.received = 0
	b.totalChunks = 0
}
