package model

import "time"

// DeviceSession is the live protocol state of one managed device. It exists
// only after a successful Authenticate check-in and is removed on CheckOut.
type DeviceSession struct {
	UDID         string    `json:"udid"`
	PushToken    []byte    `json:"pushToken,omitempty"`
	PushMagic    string    `json:"pushMagic,omitempty"`
	UnlockToken  []byte    `json:"unlockToken,omitempty"`
	OSVersion    string    `json:"osVersion"`
	BuildVersion string    `json:"buildVersion"`
	Model        string    `json:"model"`
	SerialNumber string    `json:"serialNumber"`
	Supervised   bool      `json:"supervised"`
	LastCheckIn  time.Time `json:"lastCheckIn"`
}

// HasPushToken reports whether the session carries enough material to wake
// the device out of band.
func (s *DeviceSession) HasPushToken() bool {
	return s != nil && len(s.PushToken) > 0 && s.PushMagic != ""
}
