package relay

import "errors"

// Domain errors for the relay engine.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, relay.ErrMalformedPayload) {
//	    // drop and log, never retried
//	}
var (
	// ErrMalformedPayload is returned when a bus message cannot be decoded.
	// The message is logged and dropped; bus messages are not redelivered.
	ErrMalformedPayload = errors.New("relay: malformed payload")

	// ErrUnknownTopic is returned for a topic the engine does not handle.
	ErrUnknownTopic = errors.New("relay: unknown topic")

	// ErrUnknownIntent is returned for a client intent kind the engine
	// does not recognise.
	ErrUnknownIntent = errors.New("relay: unknown intent")

	// ErrStopped is returned when a message arrives after Stop.
	ErrStopped = errors.New("relay: engine stopped")
)
