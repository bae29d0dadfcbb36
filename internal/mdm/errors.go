package mdm

import "errors"

var (
	// ErrUnknownDevice rejects check-ins from devices with no durable record.
	// Nothing is mutated on this path.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrNoSession rejects protocol messages that require a prior
	// Authenticate. The device must re-authenticate.
	ErrNoSession = errors.New("no session")
	// ErrUnknownCommand rejects command responses that do not match the
	// device's in-flight command (misrouted or replayed). The queue is not
	// mutated.
	ErrUnknownCommand = errors.New("unknown command")
)
