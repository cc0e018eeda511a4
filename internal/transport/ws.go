package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// handshakeTimeout bounds the WebSocket upgrade handshake, matching the
	// teacher's kalshi/polymarket WSClient dialers.
	handshakeTimeout = 15 * time.Second
	// writeWait bounds individual frame and control-frame writes.
	writeWait = 10 * time.Second
)

// WSTransport is the gorilla/websocket-backed Transport implementation. It
// supports plain ws:// and TLS wss:// endpoints, optionally tunneled through
// an HTTPS CONNECT proxy (spec.md section 6).
type WSTransport struct {
	url   string
	proxy *Proxy

	conn *websocket.Conn

	events chan Event

	closeOnce sync.Once
	closed    chan struct{}

	writeMu sync.Mutex
}

// New creates a WSTransport for the given endpoint URL (already carrying
// "/v2" and "?appkey=..."). proxy may be nil.
func New(url string, proxy *Proxy) *WSTransport {
	return &WSTransport{
		url:    url,
		proxy:  proxy,
		events: make(chan Event, 64),
		closed: make(chan struct{}),
	}
}

func (w *WSTransport) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	if w.proxy != nil {
		dialer.NetDialContext = w.proxyDialContext
	}

	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("transport: connect: %w", err)
	}
	w.conn = conn

	conn.SetPongHandler(func(string) error { return nil })

	go w.readPump()

	return nil
}

// proxyDialContext issues an HTTP CONNECT to the configured proxy and then
// hands gorilla/websocket the tunneled connection to continue the TLS/WS
// handshake over. Modeled on the teacher's custom DialFunc in
// internal/store/postgres/client.go (dial, then let the caller negotiate the
// rest over the returned net.Conn).
func (w *WSTransport) proxyDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	proxyAddr := net.JoinHostPort(w.proxy.Host, fmt.Sprintf("%d", w.proxy.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial proxy %s: %w", proxyAddr, err)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: write CONNECT: %w", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: read CONNECT response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("transport: proxy CONNECT failed: %s", resp.Status)
	}

	return conn, nil
}

func (w *WSTransport) Send(f Frame) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("transport: send before connect")
	}
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	msgType := websocket.TextMessage
	if f.Binary {
		msgType = websocket.BinaryMessage
	}
	if err := w.conn.WriteMessage(msgType, f.Data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (w *WSTransport) Ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("transport: ping before connect")
	}
	deadline := time.Now().Add(writeWait)
	if err := w.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return fmt.Errorf("transport: ping: %w", err)
	}
	return nil
}

// readPump is the dedicated transport-reader goroutine (spec.md section 5):
// it owns inbound-frame parsing and translates frames/errors into Events. It
// never mutates state machine state directly.
func (w *WSTransport) readPump() {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.emitClosed(err)
			return
		}

		select {
		case w.events <- Event{Kind: EventFrame, Frame: Frame{Binary: msgType == websocket.BinaryMessage, Data: data}}:
		case <-w.closed:
			return
		}
	}
}

func (w *WSTransport) emitClosed(err error) {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.events <- Event{Kind: EventClosed, Err: err}
		close(w.events)
		if w.conn != nil {
			w.conn.Close()
		}
	})
}

func (w *WSTransport) Events() <-chan Event { return w.events }

func (w *WSTransport) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		if w.conn != nil {
			w.writeMu.Lock()
			_ = w.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			w.writeMu.Unlock()
			w.conn.Close()
		}
		close(w.events)
	})
	return nil
}
