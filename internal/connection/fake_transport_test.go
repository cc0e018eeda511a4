package connection

import (
	"context"

	"github.com/satori-rtm/rtmclient/internal/transport"
)

// fakeTransport is an in-process Transport double: Send appends to Sent and
// a test can push synthetic inbound frames through Deliver.
type fakeTransport struct {
	events  chan transport.Event
	Sent    [][]byte
	pinged  int
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 64)}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

func (f *fakeTransport) Send(fr transport.Frame) error {
	f.Sent = append(f.Sent, fr.Data)
	return nil
}

func (f *fakeTransport) Ping() error { f.pinged++; return nil }

func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) Close() error {
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeTransport) Deliver(data []byte) {
	f.events <- transport.Event{Kind: transport.EventFrame, Frame: transport.Frame{Data: data}}
}

func (f *fakeTransport) DeliverClosed(err error) {
	f.events <- transport.Event{Kind: transport.EventClosed, Err: err}
}

var _ transport.Transport = (*fakeTransport)(nil)
