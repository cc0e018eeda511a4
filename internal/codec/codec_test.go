package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satori-rtm/rtmclient/internal/pdu"
)

func idOf(v uint64) *uint64 { return &v }

func TestByName(t *testing.T) {
	c, err := ByName("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = ByName("cbor")
	require.NoError(t, err)
	assert.Equal(t, "cbor", c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	p := pdu.PDU{
		Action: pdu.ActionPublish,
		ID:     idOf(7),
		Body:   map[string]interface{}{"channel": "ch", "message": map[string]interface{}{"k": float64(1)}},
	}
	data, err := JSON{}.Encode(p)
	require.NoError(t, err)

	got, err := JSON{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, p.Action, got.Action)
	require.NotNil(t, got.ID)
	assert.Equal(t, *p.ID, *got.ID)
}

func TestCBORRoundTrip(t *testing.T) {
	p := pdu.PDU{
		Action: pdu.ActionSubscribe,
		ID:     idOf(42),
		Body:   map[string]interface{}{"channel": "ch", "fast_forward": true},
	}
	data, err := CBOR{}.Encode(p)
	require.NoError(t, err)

	got, err := CBOR{}.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, p.Action, got.Action)
	require.NotNil(t, got.ID)
	assert.Equal(t, *p.ID, *got.ID)

	body, ok := got.Body.(map[interface{}]interface{})
	if !ok {
		bodyStr, okStr := got.Body.(map[string]interface{})
		require.True(t, okStr, "expected decoded body to be a map")
		assert.Equal(t, "ch", bodyStr["channel"])
		return
	}
	assert.Equal(t, "ch", body["channel"])
}

func TestPDUWithoutID(t *testing.T) {
	p := pdu.PDU{Action: pdu.ActionPublish, Body: map[string]interface{}{"channel": "ch", "message": "hi"}}
	data, err := JSON{}.Encode(p)
	require.NoError(t, err)
	got, err := JSON{}.Decode(data)
	require.NoError(t, err)
	assert.Nil(t, got.ID)
}
