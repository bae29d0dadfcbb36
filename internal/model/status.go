package model

import "time"

// DeviceStatus is the operator-facing summary of one device.
type DeviceStatus struct {
	UDID             string     `json:"udid"`
	Online           bool       `json:"online"`
	LastCheckIn      *time.Time `json:"lastCheckIn,omitempty"`
	Supervised       bool       `json:"supervised"`
	PendingCommands  int        `json:"pendingCommands"`
	ProfileInstalled bool       `json:"profileInstalled"`
	SecurityLevel    int        `json:"securityLevel"`
	LastCommandError string     `json:"lastCommandError,omitempty"`
}
