package credmine

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Encoder defines the interface for queue record serialization.
type Encoder interface {
	// Encode serializes a value to bytes.
	Encode(any) ([]byte, error)
	// Decode deserializes bytes to a value.
	Decode([]byte, any) error
}

// JSONEncoder is the default implementation of Encoder using JSON.
// It uses standard library for encoding and sonic for decoding.
type JSONEncoder struct{}

// Encode serializes a value to JSON using standard library.
func (*JSONEncoder) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON bytes using sonic.
func (*JSONEncoder) Decode(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// partitionCodec encodes the record partitions stored by external backends.
// An absent result is stored as an empty value.
type partitionCodec struct{ enc Encoder }

func newPartitionCodec(enc Encoder) partitionCodec {
	if enc == nil {
		enc = &JSONEncoder{}
	}
	return partitionCodec{enc: enc}
}

func (c partitionCodec) encodeCapture(f Fields) ([]byte, error) {
	b, err := c.enc.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return b, nil
}

func (c partitionCodec) encodeState(s taskState) ([]byte, error) {
	b, err := c.enc.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

func (c partitionCodec) encodeResult(f *Fields) ([]byte, error) {
	if f == nil {
		return []byte{}, nil
	}
	b, err := c.enc.Encode(f)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}

// decode fills r from the encoded partitions.
func (c partitionCodec) decode(r *record, capture, state, result []byte) error {
	if len(capture) > 0 {
		if err := c.enc.Decode(capture, &r.Capture); err != nil {
			return fmt.Errorf("decode capture %s: %w", r.ID, err)
		}
	}
	if len(state) > 0 {
		if err := c.enc.Decode(state, &r.State); err != nil {
			return fmt.Errorf("decode state %s: %w", r.ID, err)
		}
	}
	r.Result = nil
	if len(result) > 0 {
		var f Fields
		if err := c.enc.Decode(result, &f); err != nil {
			return fmt.Errorf("decode result %s: %w", r.ID, err)
		}
		r.Result = &f
	}
	return nil
}
