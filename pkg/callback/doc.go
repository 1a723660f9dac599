// Package callback fans device state notifications out to registered
// listeners.
//
// Each client registers exactly one Listener. State changes go to every
// registered listener in registration order; request status changes go only
// to the client that issued the request.
//
// # Delivery
//
// The Hub queues notifications and delivers them from a single background
// goroutine in the order they were queued. Producers never block on a slow
// listener, and a listener may call back into the producer without
// re-entering it.
//
// A newly registered listener first receives one StateChanged notification
// carrying the current committed state (when there is one), before any
// later notification.
package callback
