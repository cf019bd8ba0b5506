package service

import "errors"

var (
	// ErrInvalidHandlerResult is returned when the request-event hook yields
	// something other than no event, one event or a list of events.
	ErrInvalidHandlerResult = errors.New("invalid request event handler result")
	// ErrEventNotFound is returned when an event id is neither pending nor running.
	ErrEventNotFound = errors.New("event not found")
	// ErrEventFinished is returned when cancelling an event that already
	// reached a terminal status.
	ErrEventFinished = errors.New("event already finished")
	// ErrMissingVenID is returned when an operation is called without a VEN id.
	ErrMissingVenID = errors.New("missing ven id")
	// ErrStopped is returned once the dispatch loop has exited.
	ErrStopped = errors.New("event service stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("event service already running")
)
