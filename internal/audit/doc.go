// Package audit relays security-relevant events (logins, logouts, revoked
// tokens presented, store outages) to a caller-supplied sink off the request
// path.
//
// The Dispatcher buffers events in a channel and drains them on a single
// goroutine. It either blocks or drops when the buffer is full, depending on
// Config.DropIfFull. Which events exist is decided by the engine, not here.
package audit
