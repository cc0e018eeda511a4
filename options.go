package rtmclient

import (
	"io"
	"log/slog"
)

type clientOptions struct {
	logger              *slog.Logger
	observer            ClientObserver
	rawRoleSecret       string
	roleSecretPassword  string
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: NoopClientObserver{},
	}
}

// Option configures a Client at construction time.
type Option func(*clientOptions)

// WithLogger attaches a *slog.Logger. Components add their own
// slog.String("component", "...") attribute beneath it, the same layering
// the teacher's internal/app and internal/notify packages use.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithObserver registers the ClientObserver that receives supervisor
// lifecycle callbacks (spec.md section 6).
func WithObserver(observer ClientObserver) Option {
	return func(o *clientOptions) { o.observer = observer }
}

// WithRawRoleSecret supplies the role_secret credential directly, bypassing
// clientconfig.Config.RoleSecretPath's encrypted-file lookup. Intended for
// tests and for callers that manage the secret through their own process
// (e.g. a secrets manager) rather than a file on disk.
func WithRawRoleSecret(secret string) Option {
	return func(o *clientOptions) { o.rawRoleSecret = secret }
}

// WithRoleSecretPassword supplies the password used to decrypt
// Config.RoleSecretPath when it points at an EncryptRoleSecret blob.
func WithRoleSecretPassword(password string) Option {
	return func(o *clientOptions) { o.roleSecretPassword = password }
}
