package rtmclient

import "github.com/satori-rtm/rtmclient/internal/subscription"

// DeliveryMode selects how a subscription handles gaps between what the
// server holds and what the client has last seen (spec.md section 3).
type DeliveryMode int

const (
	// Simple: the server fast-forwards over gaps; the client does not
	// track position.
	Simple DeliveryMode = iota
	// Reliable: both fast-forward and position tracking are enabled.
	Reliable
	// Advanced: position tracking only; a gap surfaces as a fatal
	// out_of_sync channel error instead of being silently skipped.
	Advanced
)

func (d DeliveryMode) internal() subscription.DeliveryMode {
	switch d {
	case Reliable:
		return subscription.Reliable
	case Advanced:
		return subscription.Advanced
	default:
		return subscription.Simple
	}
}
