// Package rtmerr collects the sentinel errors the client surfaces to
// callers (spec.md section 7). Errors that close a connection or fail a
// subscription internally are not sentinels here; they travel as observer
// callback arguments instead.
package rtmerr

import "errors"

var (
	// ErrMalformedEndpoint is returned when the dial URL is built from an
	// endpoint that is empty, does not parse, or is not a ws(s):// URL.
	// Construction-time endpoint checks are made by Config.Validate, which
	// reports its own errors.
	ErrMalformedEndpoint = errors.New("rtmclient: malformed endpoint")
	// ErrMissingAppKey is returned when the dial URL is built with no
	// appkey configured.
	ErrMissingAppKey = errors.New("rtmclient: missing appkey")
	// ErrUnknownCodec names a wire codec name that resolves to neither
	// json nor cbor. No code path returns it: Config.Validate and
	// codec.ByName (UnknownCodecError) report an unknown codec with their
	// own errors.
	ErrUnknownCodec = errors.New("rtmclient: unknown codec")

	// ErrQueueFull is returned to a caller whose user action was rejected
	// because the bounded action queue is at its soft maximum (spec.md
	// section 4.4, testable property 7).
	ErrQueueFull = errors.New("rtmclient: action queue full")

	// ErrAlreadyStarted is returned by Start when the client supervisor is
	// not in the Stopped state.
	ErrAlreadyStarted = errors.New("rtmclient: already started")
	// ErrAlreadyDisposed is returned by any public method once Dispose has
	// completed.
	ErrAlreadyDisposed = errors.New("rtmclient: client already disposed")

	// ErrAuthInProgress is returned when a second auth flow is requested on
	// a Connection that already has one in flight (spec.md section 4.1:
	// "overlapping requests fail fast with an error outcome").
	ErrAuthInProgress = errors.New("rtmclient: authentication already in progress")

	// ErrOutOfSync names the out_of_sync channel error. No code path
	// returns it; a subscription observer receives the server's error code
	// and reason strings instead.
	ErrOutOfSync = errors.New("rtmclient: subscription out of sync")

	// ErrTimeout is returned by the generic Sync wrapper when the
	// caller-supplied deadline elapses before the underlying asynchronous
	// action acknowledges (spec.md section 5: the action itself is never
	// cancelled).
	ErrTimeout = errors.New("rtmclient: operation timed out")

	// ErrConnectionClosed is returned to the callback of a read, write,
	// delete, search or raw action issued while no Connection is open, and
	// to an Unsubscribe callback for a channel with no subscription.
	// Continuations still pending when a Connection is torn down are
	// dropped without being called.
	ErrConnectionClosed = errors.New("rtmclient: connection closed")

	// ErrUnsolicitedError is the internal reason recorded when an unknown
	// request id receives a general "/error" reply (spec.md section
	// 4.1, routing rule 6); it closes the connection as a protocol
	// violation.
	ErrUnsolicitedError = errors.New("rtmclient: unsolicited error reply")

	// ErrMalformedFrame is the internal reason recorded when a frame fails
	// to parse or is missing a required field (spec.md section 4.1,
	// routing rules 1, 2, 4).
	ErrMalformedFrame = errors.New("rtmclient: malformed frame")
)
