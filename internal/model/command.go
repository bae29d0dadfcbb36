package model

import "time"

// RequestType enumerates the administrative commands the engine can direct
// at a device. The set is closed; unknown strings are rejected at parse time.
type RequestType string

const (
	RequestProfileList              RequestType = "ProfileList"
	RequestSecurityInfo             RequestType = "SecurityInfo"
	RequestRestrictions             RequestType = "Restrictions"
	RequestInstalledApplicationList RequestType = "InstalledApplicationList"
	RequestInstallProfile           RequestType = "InstallProfile"
	RequestRemoveProfile            RequestType = "RemoveProfile"
	RequestSettings                 RequestType = "Settings"
	RequestDeviceLock               RequestType = "DeviceLock"
)

// ParseRequestType validates a request-type string against the closed set.
func ParseRequestType(value string) (RequestType, bool) {
	switch RequestType(value) {
	case RequestProfileList, RequestSecurityInfo, RequestRestrictions,
		RequestInstalledApplicationList, RequestInstallProfile,
		RequestRemoveProfile, RequestSettings, RequestDeviceLock:
		return RequestType(value), true
	}
	return "", false
}

// CommandStatus tracks a command through its lifecycle. Terminal commands are
// never deleted, only marked, so the history doubles as an audit trail.
type CommandStatus string

const (
	CommandPending      CommandStatus = "pending"
	CommandSent         CommandStatus = "sent"
	CommandAcknowledged CommandStatus = "acknowledged"
	CommandFailed       CommandStatus = "failed"
	CommandCancelled    CommandStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s CommandStatus) Terminal() bool {
	switch s {
	case CommandAcknowledged, CommandFailed, CommandCancelled:
		return true
	}
	return false
}

// Command is a single unit of administrative work directed at a device.
type Command struct {
	CommandUUID    string         `json:"commandUUID"`
	UDID           string         `json:"udid"`
	RequestType    RequestType    `json:"requestType"`
	Payload        map[string]any `json:"payload,omitempty"`
	Status         CommandStatus  `json:"status"`
	Seq            uint64         `json:"seq"`
	CreatedAt      time.Time      `json:"createdAt"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	ResponseData   []byte         `json:"responseData,omitempty"`
	ErrorDetail    string         `json:"errorDetail,omitempty"`
}
