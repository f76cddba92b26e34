package realtime

import "context"

// Broker fans a message out to every live connection in a group. The group
// key is the recipient's user ID, so one publish reaches all of that user's
// open sessions and nobody else's.
//
// Publish is fire-and-forget from the caller's perspective: delivery
// failures stay behind this boundary and the notification store remains the
// durable catch-up path.
type Broker interface {
	Publish(ctx context.Context, grupo string, mensaje Mensaje) error
}
