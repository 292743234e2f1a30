package wsstream

// Message is the interface for messages transmitted over the connection.
// Implementations should provide the message length and body.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

// Codec is the interface for message encoding and decoding.
// Applications should implement this interface to define their own
// message serialization format (e.g., JSON, Protocol Buffers, etc.).
//
// The engine never looks inside encoded bytes: Encode output is framed and
// chunked as an opaque payload, and Decode receives a fully reassembled
// payload.
type Codec interface {
	// Decode decodes one complete payload.
	Decode(payload []byte) (Message, error)
	// Encode encodes a Message into raw bytes for transmission.
	Encode(Message) ([]byte, error)
}

// Bytes is a Message holding an opaque payload.
type Bytes []byte

// Length returns len(b).
func (b Bytes) Length() int { return len(b) }

// Body returns b.
func (b Bytes) Body() []byte { return b }

// rawCodec passes bodies through untouched.
type rawCodec struct{}

func (rawCodec) Decode(payload []byte) (Message, error) { return Bytes(payload), nil }

func (rawCodec) Encode(m Message) ([]byte, error) { return m.Body(), nil }
