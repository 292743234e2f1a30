package wsstream

// Chunk is one part of a split payload. Data shares the backing array of
// the payload it was cut from.
type Chunk struct {
	StreamID uint32
	Index    uint32
	Total    uint32
	Data     []byte
}

// Split cuts data into chunks of chunkSize bytes; the last one may be
// shorter. An empty payload still yields exactly one zero-length chunk
// with Total 1. A non-positive chunkSize means ChunkSize.
//
// No bytes are copied: every chunk is a capacity-limited subslice of data.
func Split(data []byte, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	if len(data) == 0 {
		return []Chunk{{Index: 0, Total: 1, Data: data[:0:0]}}
	}

	n := (len(data) + chunkSize - 1) / chunkSize
	total := uint32(n)
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		chunks = append(chunks, Chunk{
			Index: uint32(i),
			Total: total,
			Data:  data[start:end:end],
		})
	}
	return chunks
}

// ChunkPayload splits data at ChunkSize and tags every chunk with streamID.
func ChunkPayload(data []byte, streamID uint32) []Chunk {
	chunks := Split(data, ChunkSize)
	for i := range chunks {
		chunks[i].StreamID = streamID
	}
	return chunks
}

// ChunkFrames splits data into sequential chunk frames.
func ChunkFrames(data []byte) [][]byte {
	chunks := Split(data, ChunkSize)
	frames := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		frames = append(frames, WrapChunk(c.Total, c.Data))
	}
	return frames
}

// EncodeFrames frames data for the sequential protocol: one complete frame
// when it fits under ChunkThreshold, chunk frames otherwise.
func EncodeFrames(data []byte) [][]byte {
	if len(data) <= ChunkThreshold {
		return [][]byte{WrapComplete(data)}
	}
	return ChunkFrames(data)
}

// EncodeStreamFrames frames data for the multiplexed protocol under streamID.
// Payloads under ChunkThreshold still go out as one complete frame.
func EncodeStreamFrames(data []byte, streamID uint32) [][]byte {
	if len(data) <= ChunkThreshold {
		return [][]byte{WrapComplete(data)}
	}
	return streamChunkFrames(data, streamID)
}

func streamChunkFrames(data []byte, streamID uint32) [][]byte {
	chunks := ChunkPayload(data, streamID)
	frames := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		frames = append(frames, WrapStreamChunk(c))
	}
	return frames
}
