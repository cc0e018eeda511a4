package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades every request to a WebSocket and echoes back whatever
// it receives, once.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestWSTransportSendAndReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	tr := New(url, nil)
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Close()

	require.NoError(t, tr.Send(Frame{Data: []byte(`{"action":"rtm/publish"}`)}))

	select {
	case ev := <-tr.Events():
		require.Equal(t, EventFrame, ev.Kind)
		assert.Equal(t, `{"action":"rtm/publish"}`, string(ev.Frame.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}
}

func TestWSTransportEmitsClosedOnServerClose(t *testing.T) {
	srv := echoServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	tr := New(url, nil)
	require.NoError(t, tr.Connect(context.Background()))

	srv.Close()

	select {
	case ev := <-tr.Events():
		assert.Equal(t, EventClosed, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for closed event")
	}
}
