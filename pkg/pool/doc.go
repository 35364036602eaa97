// Package pool manages backend connections for ordinary commands.
//
// A Manager holds one Pool per worker (http_threads). Each Pool hands out
// at most pool_size_per_thread connections at once; callers block in
// Checkout until a slot frees or the checkout timeout fires. Connections
// that fail at the transport level are discarded on Checkin and replaced
// lazily. Dialing an unreachable backend retries with bounded exponential
// backoff before reporting ErrBackendUnavailable.
//
// Subscriptions never use these connections; see package pubsub.
package pool
