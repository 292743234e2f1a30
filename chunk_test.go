package wsstream

import (
	"bytes"
	"testing"
)

func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func TestSplit_Small(t *testing.T) {
	data := bytes.Repeat([]byte{42}, 1024)
	chunks := Split(data, ChunkSize)

	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[0].Total != 1 {
		t.Errorf("chunk = (%d, %d), want (0, 1)", chunks[0].Index, chunks[0].Total)
	}
	if !bytes.Equal(chunks[0].Data, data) {
		t.Error("chunk data differs from payload")
	}
}

func TestSplit_Empty(t *testing.T) {
	for _, data := range [][]byte{nil, {}} {
		chunks := Split(data, ChunkSize)
		if len(chunks) != 1 {
			t.Fatalf("len(chunks) = %d, want 1", len(chunks))
		}
		if chunks[0].Index != 0 || chunks[0].Total != 1 || len(chunks[0].Data) != 0 {
			t.Errorf("chunk = %+v, want one empty chunk with total 1", chunks[0])
		}
	}
}

func TestSplit_TotalInvariant(t *testing.T) {
	sizes := []struct {
		length    int
		chunkSize int
		want      int
	}{
		{1, 1, 1},
		{10, 3, 4},
		{9, 3, 3},
		{ChunkSize, ChunkSize, 1},
		{ChunkSize + 1, ChunkSize, 2},
		{600 * 1024, ChunkSize, 3},
	}

	for _, s := range sizes {
		chunks := Split(patterned(s.length), s.chunkSize)
		if len(chunks) != s.want {
			t.Errorf("Split(%d, %d) = %d chunks, want %d", s.length, s.chunkSize, len(chunks), s.want)
			continue
		}
		for i, c := range chunks {
			if c.Total != uint32(s.want) {
				t.Errorf("chunk %d total = %d, want %d", i, c.Total, s.want)
			}
			if c.Index != uint32(i) {
				t.Errorf("chunk %d index = %d", i, c.Index)
			}
			if i < len(chunks)-1 && len(c.Data) != s.chunkSize {
				t.Errorf("chunk %d len = %d, want %d", i, len(c.Data), s.chunkSize)
			}
		}
	}
}

func TestSplit_SharesAllocation(t *testing.T) {
	data := patterned(10)
	chunks := Split(data, 4)

	data[5] = 0xEE
	if chunks[1].Data[1] != 0xEE {
		t.Error("chunk does not alias the payload")
	}

	// Appending to a chunk must not clobber the next one.
	_ = append(chunks[0].Data, 0xFF)
	if data[4] == 0xFF {
		t.Error("append to chunk overwrote the following bytes")
	}
}

func TestSplit_DefaultChunkSize(t *testing.T) {
	chunks := Split(patterned(ChunkSize+10), 0)
	if len(chunks) != 2 {
		t.Errorf("len(chunks) = %d, want 2", len(chunks))
	}
}

func TestChunkPayload_StreamID(t *testing.T) {
	chunks := ChunkPayload(patterned(ChunkSize*2), 42)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	for _, c := range chunks {
		if c.StreamID != 42 {
			t.Errorf("StreamID = %d, want 42", c.StreamID)
		}
	}
}

func TestEncodeFrames_Threshold(t *testing.T) {
	frames := EncodeFrames(patterned(ChunkThreshold))
	if len(frames) != 1 || frames[0][0] != tagComplete {
		t.Errorf("payload at threshold: %d frames, tag 0x%02x; want one complete frame", len(frames), frames[0][0])
	}

	frames = EncodeFrames(patterned(ChunkThreshold + 1))
	if len(frames) != 3 {
		t.Fatalf("payload over threshold: %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f[0] != tagChunk {
			t.Errorf("frame %d tag = 0x%02x, want 0x01", i, f[0])
		}
	}
}

func TestEncodeStreamFrames(t *testing.T) {
	frames := EncodeStreamFrames(patterned(10), 3)
	if len(frames) != 1 || frames[0][0] != tagComplete {
		t.Fatalf("small payload should be one complete frame")
	}

	frames = EncodeStreamFrames(patterned(600*1024), 3)
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	for i, f := range frames {
		frame, err := ParseFrame(f)
		if err != nil {
			t.Fatalf("ParseFrame failed: %v", err)
		}
		if frame.Kind != FrameStreamChunk || frame.StreamID != 3 || frame.Index != uint32(i) || frame.TotalChunks != 3 {
			t.Errorf("frame %d = %+v", i, frame)
		}
	}
}

func TestChunkFrames_EmptyPayload(t *testing.T) {
	frames := ChunkFrames(nil)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}

	frame, err := ParseFrame(frames[0])
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if frame.TotalChunks != 1 || len(frame.Payload) != 0 {
		t.Fatalf("frame = %+v, want total 1 and empty payload", frame)
	}

	got, ok, err := NewChunkReassemblyBuffer().ReceiveChunk(frame.TotalChunks, frame.Payload)
	if err != nil || !ok {
		t.Fatalf("ReceiveChunk = (%v, %v), want completion", ok, err)
	}
	if len(got) != 0 {
		t.Errorf("reassembled len = %d, want 0", len(got))
	}
}
