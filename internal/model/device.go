package model

import "time"

// DeviceRecord is the durable row for a managed device. A record must exist
// before the device's first Authenticate check-in can succeed.
type DeviceRecord struct {
	UDID          string     `json:"udid"`
	UserID        string     `json:"userId"`
	Name          string     `json:"name"`
	SecurityLevel int        `json:"securityLevel"`
	MDMEnrolled   bool       `json:"mdmEnrolled"`
	AppInventory  []AppInfo  `json:"appInventory,omitempty"`
	CheckedOutAt  *time.Time `json:"checkedOutAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AppInfo is one entry of a device-reported application inventory.
type AppInfo struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
}
