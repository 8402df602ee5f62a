// Package serialization provides the codecs used to write cache and metrics
// snapshots.
package serialization

import (
	"fmt"
	"io"
)

const (
	// JSONType represents the serialization type for JSON format.
	JSONType = "json"

	// GobType represents the serialization type for Gob format.
	GobType = "gob"
)

// Decoder reads one value from a stream.
type Decoder interface {
	Decode(v any) error
}

// Encoder writes one value to a stream.
type Encoder interface {
	Encode(v any) error
}

// Codec bundles the encoder and decoder constructors for one format.
type Codec struct {
	Type    string
	Encoder func(io.Writer) Encoder
	Decoder func(io.Reader) Decoder
}

// ByType returns the codec registered under name.
func ByType(name string) (Codec, error) {
	switch name {
	case JSONType, "":
		return Codec{Type: JSONType, Encoder: JSONEncoder, Decoder: JSONDecoder}, nil
	case GobType:
		return Codec{Type: GobType, Encoder: GobEncoder, Decoder: GobDecoder}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported serialization type: %s", name)
	}
}
