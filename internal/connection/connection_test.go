package connection

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satori-rtm/rtmclient/internal/auth"
	"github.com/satori-rtm/rtmclient/internal/codec"
	"github.com/satori-rtm/rtmclient/internal/pdu"
)

type recordingDelegate struct {
	data      []map[string]interface{}
	errors    []map[string]interface{}
	fastFwd   []string
	closedErr error
	closed    chan struct{}
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{closed: make(chan struct{}, 1)}
}

func (d *recordingDelegate) OnSubscriptionData(subscriptionID string, body map[string]interface{}) {
	d.data = append(d.data, body)
}
func (d *recordingDelegate) OnSubscriptionError(subscriptionID string, body map[string]interface{}) {
	d.errors = append(d.errors, body)
}
func (d *recordingDelegate) OnFastForward(subscriptionID string) { d.fastFwd = append(d.fastFwd, subscriptionID) }
func (d *recordingDelegate) OnClosed(err error) {
	d.closedErr = err
	select {
	case d.closed <- struct{}{}:
	default:
	}
}
func (d *recordingDelegate) OnInternalError(err error) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func setup(t *testing.T) (*Connection, *fakeTransport, *recordingDelegate) {
	t.Helper()
	ft := newFakeTransport()
	del := newRecordingDelegate()
	conn := New(ft, codec.JSON{}, del, testLogger())
	require.NoError(t, conn.Connect(context.Background()))
	go conn.Run(context.Background())
	return conn, ft, del
}

func TestPublishRoundTrip(t *testing.T) {
	conn, ft, _ := setup(t)

	var gotOK bool
	var gotErr bool
	require.NoError(t, conn.Publish("ch", map[string]interface{}{"k": 1}, func(p pdu.PDU, ok bool) {
		gotOK = ok
		_ = p
	}))

	require.Len(t, ft.Sent, 1)
	sent, err := codec.JSON{}.Decode(ft.Sent[0])
	require.NoError(t, err)
	require.NotNil(t, sent.ID)
	assert.Equal(t, pdu.ActionPublish, sent.Action)

	reply := pdu.PDU{Action: pdu.ActionPublish + "/ok", ID: sent.ID}
	data, err := codec.JSON{}.Encode(reply)
	require.NoError(t, err)
	ft.Deliver(data)

	require.Eventually(t, func() bool { return gotOK }, time.Second, time.Millisecond)
	assert.False(t, gotErr)
}

func TestSubscribeUsesFilterBodyWhenPresent(t *testing.T) {
	conn, ft, _ := setup(t)

	require.NoError(t, conn.Subscribe("myid", map[string]interface{}{"filter": "select * from ch"}, func(pdu.PDU, bool) {}))
	require.Len(t, ft.Sent, 1)
	sent, err := codec.JSON{}.Decode(ft.Sent[0])
	require.NoError(t, err)
	body, ok := sent.Body.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "myid", body["subscription_id"])
	_, hasChannel := body["channel"]
	assert.False(t, hasChannel)
}

func TestSubscriptionDataRoutesToDelegate(t *testing.T) {
	conn, ft, del := setup(t)
	_ = conn

	data, err := codec.JSON{}.Encode(pdu.PDU{
		Action: pdu.ActionSubscriptionData,
		Body:   map[string]interface{}{"subscription_id": "ch", "messages": []interface{}{"a"}},
	})
	require.NoError(t, err)
	ft.Deliver(data)

	require.Eventually(t, func() bool { return len(del.data) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "ch", del.data[0]["subscription_id"])
}

func TestUnsolicitedErrorClosesConnection(t *testing.T) {
	conn, ft, del := setup(t)
	_ = conn

	data, err := codec.JSON{}.Encode(pdu.PDU{Action: pdu.ActionGeneralError, Body: map[string]interface{}{"message": "boom"}})
	require.NoError(t, err)
	ft.Deliver(data)

	select {
	case <-del.closed:
	case <-time.After(time.Second):
		t.Fatal("expected OnClosed to fire on unsolicited error")
	}
	assert.Error(t, del.closedErr)
}

func TestAuthenticateRoleSecretFlow(t *testing.T) {
	conn, ft, _ := setup(t)

	var authErr error
	authErr = errSentinel
	done := make(chan struct{})
	delegate := auth.RoleSecretDelegate{Role: "admin", Secret: "sekret"}
	require.NoError(t, conn.Authenticate(delegate, func(err error) {
		authErr = err
		close(done)
	}))

	require.Eventually(t, func() bool { return len(ft.Sent) == 1 }, time.Second, time.Millisecond)
	hsReq, err := codec.JSON{}.Decode(ft.Sent[0])
	require.NoError(t, err)
	assert.Equal(t, pdu.ActionAuthHandshake, hsReq.Action)

	hsReply, err := codec.JSON{}.Encode(pdu.PDU{
		Action: pdu.ActionAuthHandshake + "/ok",
		ID:     hsReq.ID,
		Body:   map[string]interface{}{"nonce": "n0nce"},
	})
	require.NoError(t, err)
	ft.Deliver(hsReply)

	require.Eventually(t, func() bool { return len(ft.Sent) == 2 }, time.Second, time.Millisecond)
	authReq, err := codec.JSON{}.Decode(ft.Sent[1])
	require.NoError(t, err)
	assert.Equal(t, pdu.ActionAuthenticate, authReq.Action)
	body := authReq.Body.(map[string]interface{})
	creds := body["credentials"].(map[string]interface{})
	assert.Equal(t, "SJoKafBz8fMIA8t8OWYAXw==", creds["hash"])

	authReply, err := codec.JSON{}.Encode(pdu.PDU{Action: pdu.ActionAuthenticate + "/ok", ID: authReq.ID, Body: map[string]interface{}{}})
	require.NoError(t, err)
	ft.Deliver(authReply)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for auth completion")
	}
	assert.NoError(t, authErr)
}

var errSentinel = assert.AnError
