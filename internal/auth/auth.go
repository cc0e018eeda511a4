// Package auth implements the authentication sub-state-machine described in
// spec.md section 4.1: Idle -> HandshakeSent -> AuthenticateSent -> Idle,
// with outcome Done or Error. A Delegate drives the flow by reacting to each
// server reply and returning the next Action to perform.
package auth

// Action is the sum type returned by a Delegate at each step of the flow.
// Exactly one of Handshake, Authenticate, Done, or Error is produced at a
// time.
type Action interface{ isAction() }

// Handshake requests the server start a named auth method, e.g.
// {"method": "role_secret", "data": {"role": "..."}}.
type Handshake struct {
	Method string
	Data   map[string]interface{}
	// Next consumes the server's HandshakeOK and returns the next Action
	// (normally an Authenticate).
	Next func(HandshakeOK) Action
}

// Authenticate presents credentials derived from the handshake reply, e.g.
// {"method": "role_secret", "credentials": {"hash": "..."}}.
type Authenticate struct {
	Method      string
	Credentials map[string]interface{}
	// Next consumes the server's AuthenticateOK and returns the final
	// Action (normally Done).
	Next func(AuthenticateOK) Action
}

// Done signals that authentication succeeded.
type Done struct{}

// Error signals that authentication failed, either because the server
// rejected a step or because the Delegate itself gave up.
type Error struct{ Message string }

func (Handshake) isAction()    {}
func (Authenticate) isAction() {}
func (Done) isAction()         {}
func (Error) isAction()        {}

func (e Error) Error() string { return e.Message }

// HandshakeOK is the decoded body of an auth/handshake/ok reply.
type HandshakeOK struct{ Data map[string]interface{} }

// AuthenticateOK is the decoded body of an auth/authenticate/ok reply (it
// carries no fields worth exposing).
type AuthenticateOK struct{}

// Delegate produces the first Action of an auth flow. A RoleSecretDelegate
// (rolesecret.go) is the concrete implementation spec.md section 6 requires;
// Delegate itself is the seam that lets callers plug in other auth methods
// without the Connection knowing about them.
type Delegate interface {
	Start() Action
}
