// Package codec provides the two interchangeable wire encodings negotiated
// at Connection construction time: text-JSON and binary-CBOR. The codec is a
// construction-time parameter everywhere in this module -- there is no
// global "enable fast codec" switch to toggle at runtime.
package codec

import "github.com/satori-rtm/rtmclient/internal/pdu"

// FrameKind describes whether a codec's frames are carried as WebSocket text
// or binary frames.
type FrameKind int

const (
	// Text frames are UTF-8 text, one PDU per frame.
	Text FrameKind = iota
	// Binary frames carry one PDU per frame.
	Binary
)

// Codec serializes request PDUs and parses reply/event PDUs.
type Codec interface {
	// Name identifies the codec, e.g. "json" or "cbor".
	Name() string
	// FrameKind reports whether Encode produces text or binary frames.
	FrameKind() FrameKind
	// Encode serializes a PDU to the wire representation.
	Encode(p pdu.PDU) ([]byte, error)
	// Decode parses a wire frame into a PDU.
	Decode(data []byte) (pdu.PDU, error)
}

// ByName resolves a codec by its configuration name ("json" or "cbor").
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "cbor":
		return CBOR{}, nil
	default:
		return nil, &UnknownCodecError{Name: name}
	}
}

// UnknownCodecError is returned by ByName for an unrecognized codec name.
type UnknownCodecError struct{ Name string }

func (e *UnknownCodecError) Error() string {
	return "codec: unknown codec " + e.Name + " (expected \"json\" or \"cbor\")"
}
