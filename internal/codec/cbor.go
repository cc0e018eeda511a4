package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/satori-rtm/rtmclient/internal/pdu"
)

// CBOR is the binary codec: one PDU per WebSocket binary frame, map keys
// always text, values text or binary. Grounded on the pack's own use of
// github.com/fxamacker/cbor/v2 (streamspace-dev-streamspace, and the
// matrix-org-lb / primal-host-primal-pds manifests).
type CBOR struct{}

var cborEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec/cbor: building encode mode: %v", err))
	}
	return mode
}()

// cborDecMode decodes maps as map[string]interface{}, the same shape the
// JSON codec yields, since map keys are always text.
var cborDecMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]interface{}(nil))}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec/cbor: building decode mode: %v", err))
	}
	return mode
}()

func (CBOR) Name() string         { return "cbor" }
func (CBOR) FrameKind() FrameKind { return Binary }

func (CBOR) Encode(p pdu.PDU) ([]byte, error) {
	data, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("codec/cbor: encode: %w", err)
	}
	return data, nil
}

func (CBOR) Decode(data []byte) (pdu.PDU, error) {
	var p pdu.PDU
	if err := cborDecMode.Unmarshal(data, &p); err != nil {
		return pdu.PDU{}, fmt.Errorf("codec/cbor: decode: %w", err)
	}
	return p, nil
}
