package wsstream

import "encoding/binary"

// Frame tags. Every frame written to the transport starts with one of these.
const (
	tagComplete     byte = 0x00
	tagChunk        byte = 0x01
	tagStreamChunk  byte = 0x02
	tagStreamHeader byte = 0x03
)

// Protocol constants. Both peers must agree on them.
const (
	// ChunkHeaderSize is the size of a sequential chunk header: 1 (tag) + 4 (total_chunks).
	ChunkHeaderSize = 5
	// StreamChunkHeaderSize is 1 (tag) + 4 (stream_id) + 4 (index) + 4 (total).
	StreamChunkHeaderSize = 13
	// StreamHeaderSize is 1 (tag) + 4 (stream_id) + 8 (total_bytes).
	StreamHeaderSize = 13

	// ChunkSize is the payload size of every chunk but the last: 256 KiB.
	ChunkSize = 256 * 1024
	// ChunkThreshold is the largest payload sent as a single complete frame: 512 KiB.
	ChunkThreshold = 512 * 1024

	// MaxTotalChunks bounds total_chunks accepted from the wire.
	// 256 chunks * 256 KiB = 64 MiB of reassembly buffer at most.
	MaxTotalChunks uint32 = 256
	// MaxConcurrentStreams bounds partially received streams per ReassemblyBuffer.
	MaxConcurrentStreams = 8
	// MaxPayloadSize is the largest payload that fits in MaxTotalChunks chunks.
	MaxPayloadSize = int(MaxTotalChunks) * ChunkSize
)

// FrameKind identifies the variant of a parsed Frame.
type FrameKind uint8

const (
	// FrameComplete carries a whole payload.
	FrameComplete FrameKind = iota
	// FrameChunk carries one part of a payload in the sequential protocol.
	FrameChunk
	// FrameStreamChunk carries one part of a payload in the multiplexed protocol.
	FrameStreamChunk
	// FrameStreamHeader announces an incrementally consumable stream.
	FrameStreamHeader
)

func (k FrameKind) String() string {
	switch k {
	case FrameComplete:
		return "complete"
	case FrameChunk:
		return "chunk"
	case FrameStreamChunk:
		return "stream_chunk"
	case FrameStreamHeader:
		return "stream_header"
	default:
		return "unknown"
	}
}

// Frame is a parsed wire frame. Payload aliases the parsed buffer.
//
// Field usage per kind:
//   - FrameComplete: Payload
//   - FrameChunk: TotalChunks, Payload
//   - FrameStreamChunk: StreamID, Index, TotalChunks, Payload
//   - FrameStreamHeader: StreamID, TotalBytes
type Frame struct {
	Kind        FrameKind
	StreamID    uint32
	Index       uint32
	TotalChunks uint32
	TotalBytes  uint64
	Payload     []byte
}

// WrapComplete prepends the complete tag to payload.
func WrapComplete(payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = tagComplete
	copy(buf[1:], payload)
	return buf
}

// WrapChunk builds a sequential chunk frame.
func WrapChunk(totalChunks uint32, payload []byte) []byte {
	buf := make([]byte, ChunkHeaderSize+len(payload))
	buf[0] = tagChunk
	binary.LittleEndian.PutUint32(buf[1:5], totalChunks)
	copy(buf[ChunkHeaderSize:], payload)
	return buf
}

// WrapStreamChunk builds a multiplexed chunk frame.
func WrapStreamChunk(c Chunk) []byte {
	buf := make([]byte, StreamChunkHeaderSize+len(c.Data))
	buf[0] = tagStreamChunk
	binary.LittleEndian.PutUint32(buf[1:5], c.StreamID)
	binary.LittleEndian.PutUint32(buf[5:9], c.Index)
	binary.LittleEndian.PutUint32(buf[9:13], c.Total)
	copy(buf[StreamChunkHeaderSize:], c.Data)
	return buf
}

// WrapStreamHeader builds a stream header frame.
func WrapStreamHeader(streamID uint32, totalBytes uint64) []byte {
	buf := make([]byte, StreamHeaderSize)
	buf[0] = tagStreamHeader
	binary.LittleEndian.PutUint32(buf[1:5], streamID)
	binary.LittleEndian.PutUint64(buf[5:13], totalBytes)
	return buf
}

// ParseFrame parses one wire frame. It has no side effects.
//
// Sequential chunk frames are validated against MaxTotalChunks here;
// multiplexed chunk metadata is left to ReassemblyBuffer, which checks it
// in a fixed order.
func ParseFrame(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, &MessageTooShortError{Expected: 1, Actual: 0}
	}

	switch data[0] {
	case tagComplete:
		return Frame{Kind: FrameComplete, Payload: data[1:]}, nil

	case tagChunk:
		if len(data) < ChunkHeaderSize {
			return Frame{}, &MessageTooShortError{Expected: ChunkHeaderSize, Actual: len(data)}
		}
		total := binary.LittleEndian.Uint32(data[1:5])
		if total == 0 {
			return Frame{}, ErrZeroTotalChunks
		}
		if total > MaxTotalChunks {
			return Frame{}, &TotalChunksTooLargeError{Total: total, Max: MaxTotalChunks}
		}
		return Frame{Kind: FrameChunk, TotalChunks: total, Payload: data[ChunkHeaderSize:]}, nil

	case tagStreamChunk:
		if len(data) < StreamChunkHeaderSize {
			return Frame{}, &MessageTooShortError{Expected: StreamChunkHeaderSize, Actual: len(data)}
		}
		return Frame{
			Kind:        FrameStreamChunk,
			StreamID:    binary.LittleEndian.Uint32(data[1:5]),
			Index:       binary.LittleEndian.Uint32(data[5:9]),
			TotalChunks: binary.LittleEndian.Uint32(data[9:13]),
			Payload:     data[StreamChunkHeaderSize:],
		}, nil

	case tagStreamHeader:
		if len(data) < StreamHeaderSize {
			return Frame{}, &MessageTooShortError{Expected: StreamHeaderSize, Actual: len(data)}
		}
		return Frame{
			Kind:       FrameStreamHeader,
			StreamID:   binary.LittleEndian.Uint32(data[1:5]),
			TotalBytes: binary.LittleEndian.Uint64(data[5:13]),
		}, nil

	default:
		return Frame{}, &UnknownMessageTypeError{Tag: data[0]}
	}
}
