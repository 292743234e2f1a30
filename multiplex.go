package wsstream

type streamState struct {
	chunks   [][]byte
	filled   []bool
	total    uint32
	received uint32
}

// ReassemblyBuffer reassembles multiplexed chunks keyed by stream id.
// Several streams may be in flight at once, up to MaxConcurrentStreams.
//
// A ReassemblyBuffer is not safe for concurrent use; the engine task is
// its only mutator.
type ReassemblyBuffer struct {
	streams map[uint32]*streamState
}

// NewReassemblyBuffer returns an empty buffer.
func NewReassemblyBuffer() *ReassemblyBuffer {
	return &ReassemblyBuffer{streams: make(map[uint32]*streamState)}
}

// ReceiveChunk stores one chunk. When every index of the stream has
// arrived, the stream entry is removed and the concatenated payload is
// returned with ok set.
//
// Checks run in order: zero total, total above MaxTotalChunks, index out
// of range, stream admission; none of these mutate the buffer. A chunk
// above ChunkSize, a total mismatch or a duplicate index against an
// existing stream discards that stream's entry.
func (b *ReassemblyBuffer) ReceiveChunk(streamID, index, total uint32, data []byte) (complete []byte, ok bool, err error) {
	if total == 0 {
		return nil, false, ErrZeroTotalChunks
	}
	if total > MaxTotalChunks {
		return nil, false, &TotalChunksTooLargeError{Total: total, Max: MaxTotalChunks}
	}
	if index >= total {
		return nil, false, &IndexOutOfRangeError{StreamID: streamID, Index: index, Total: total}
	}

	state, exists := b.streams[streamID]
	if !exists {
		if len(b.streams) >= MaxConcurrentStreams {
			return nil, false, &TooManyConcurrentStreamsError{Count: len(b.streams), Max: MaxConcurrentStreams}
		}
		state = &streamState{
			chunks: make([][]byte, total),
			filled: make([]bool, total),
			total:  total,
		}
	}

	if len(data) > ChunkSize {
		delete(b.streams, streamID)
		return nil, false, &ChunkTooLargeError{StreamID: streamID, Index: index, Size: len(data), Max: ChunkSize}
	}

	if exists && state.total != total {
		delete(b.streams, streamID)
		return nil, false, &TotalChunksMismatchError{
			StreamID:    streamID,
			Expected:    state.total,
			Actual:      total,
			multiplexed: true,
		}
	}

	if state.filled[index] {
		delete(b.streams, streamID)
		return nil, false, &DuplicateChunkError{StreamID: streamID, Index: index}
	}

	state.chunks[index] = data
	state.filled[index] = true
	state.received++

	if state.received < state.total {
		b.streams[streamID] = state
		return nil, false, nil
	}

	delete(b.streams, streamID)

	size := 0
	for _, c := range state.chunks {
		size += len(c)
	}
	complete = make([]byte, 0, size)
	for _, c := range state.chunks {
		complete = append(complete, c...)
	}
	return complete, true, nil
}

// Len returns the number of partially received streams.
func (b *ReassemblyBuffer) Len() int {
	return len(b.streams)
}

// Evict drops the partial state of a stream. It reports whether the stream existed.
func (b *ReassemblyBuffer) Evict(streamID uint32) bool {
	if _, ok := b.streams[streamID]; !ok {
		return false
	}
	delete(b.streams, streamID)
	return true
}
