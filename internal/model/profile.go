package model

import "time"

// Policy is the declarative blocking policy supplied by the policy store.
// It is consumed as a read-only value object.
type Policy struct {
	Categories    []DomainCategory `json:"categories"`
	CustomBlocked []string         `json:"customBlocked,omitempty"`
	CustomAllowed []string         `json:"customAllowed,omitempty"`
}

// DomainCategory is a named set of domains the operator can toggle.
type DomainCategory struct {
	Name    string   `json:"name"`
	Blocked bool     `json:"blocked"`
	Domains []string `json:"domains"`
}

// SupervisionProfile is a signed declarative configuration document bound to
// one device. Installed/InstallDate are reconciled from device-reported
// profile lists, never set optimistically.
type SupervisionProfile struct {
	ProfileUUID   string     `json:"profileUUID"`
	UDID          string     `json:"udid"`
	SecurityLevel int        `json:"securityLevel"`
	Signed        bool       `json:"signed"`
	SignedBytes   []byte     `json:"signedBytes,omitempty"`
	Installed     bool       `json:"installed"`
	InstallDate   *time.Time `json:"installDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
