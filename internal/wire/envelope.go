// Package wire implements the transport contract shared by every
// worker endpoint: the RPC service descriptor, the request/response
// messages, and the PickleHolder-equivalent envelope used to carry
// results that must be decoded lazily.
//
// Results can arrive either as a plain value or as a wrapper that must
// be decoded, so callers never need to special-case a slow-to-encode
// result type. MsgPack, a schema-light cross-language serializer, is
// the wire format — the same family hashicorp/raft uses for its own
// command payloads.
package wire

import (
	"bytes"

	msgpack "github.com/hashicorp/go-msgpack/v2/codec"
)

func mpHandle() *msgpack.MsgpackHandle {
	return &msgpack.MsgpackHandle{}
}

// Encode serializes v into a MsgPack byte string.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf, mpHandle())
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a MsgPack byte string produced by Encode into out.
func Decode(data []byte, out interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data), mpHandle())
	return dec.Decode(out)
}

// EnvelopeKind distinguishes a plain inline value from one that must
// be decoded lazily.
type EnvelopeKind uint8

const (
	// KindRaw means Value already holds the real result.
	KindRaw EnvelopeKind = iota
	// KindEncoded means Payload holds a MsgPack blob that Extract
	// must decode to obtain the real result.
	KindEncoded
)

// Envelope is the PickleHolder equivalent: a well-known wrapper that
// may carry a result inline (Kind == KindRaw, Value populated) or as
// an opaque serialized blob (Kind == KindEncoded, Payload populated).
// The manager's cleanupFinishedHandles unwraps every Envelope it sees before
// invoking the caller's result callback, so callers never observe one.
type Envelope struct {
	Kind    EnvelopeKind `codec:"kind"`
	Value   interface{}  `codec:"value,omitempty"`
	Payload []byte       `codec:"payload,omitempty"`
}

// NewEncodedEnvelope wraps v as a lazily-decoded envelope.
func NewEncodedEnvelope(v interface{}) (Envelope, error) {
	b, err := Encode(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindEncoded, Payload: b}, nil
}

// Extract decodes the envelope to the real result value. Raw envelopes
// return Value unchanged.
func (e Envelope) Extract() (interface{}, error) {
	if e.Kind == KindRaw {
		return e.Value, nil
	}
	var out interface{}
	if err := Decode(e.Payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Unwrap extracts result if it is an Envelope, and returns it
// unchanged otherwise. This is the single chokepoint the Manager uses
// to guarantee every caller sees a plain decoded value, never an
// envelope.
func Unwrap(result interface{}) (interface{}, error) {
	env, ok := result.(Envelope)
	if !ok {
		return result, nil
	}
	return env.Extract()
}
