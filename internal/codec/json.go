package codec

import (
	"encoding/json"
	"fmt"

	"github.com/satori-rtm/rtmclient/internal/pdu"
)

// JSON is the text codec: UTF-8 text frames, one PDU per frame, numbers
// decoded as IEEE-754 doubles (the behavior of encoding/json's interface{}
// decoding, which is what spec.md's wire format calls for).
type JSON struct{}

func (JSON) Name() string          { return "json" }
func (JSON) FrameKind() FrameKind  { return Text }

func (JSON) Encode(p pdu.PDU) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("codec/json: encode: %w", err)
	}
	return data, nil
}

func (JSON) Decode(data []byte) (pdu.PDU, error) {
	var p pdu.PDU
	if err := json.Unmarshal(data, &p); err != nil {
		return pdu.PDU{}, fmt.Errorf("codec/json: decode: %w", err)
	}
	return p, nil
}
