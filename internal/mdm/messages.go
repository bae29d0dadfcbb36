package mdm

// MessageType discriminates check-in messages. The set is closed; anything
// else fails decoding.
type MessageType string

const (
	MessageAuthenticate MessageType = "Authenticate"
	MessageTokenUpdate  MessageType = "TokenUpdate"
	MessageCheckOut     MessageType = "CheckOut"
)

// ParseMessageType validates a check-in message kind.
func ParseMessageType(value string) (MessageType, bool) {
	switch MessageType(value) {
	case MessageAuthenticate, MessageTokenUpdate, MessageCheckOut:
		return MessageType(value), true
	}
	return "", false
}

// CheckinMessage is the device-sent check-in body. Fields beyond MessageType
// and UDID are populated per message kind.
type CheckinMessage struct {
	MessageType  string `plist:"MessageType"`
	UDID         string `plist:"UDID"`
	Topic        string `plist:"Topic"`
	OSVersion    string `plist:"OSVersion"`
	BuildVersion string `plist:"BuildVersion"`
	ProductName  string `plist:"ProductName"`
	ModelName    string `plist:"ModelName"`
	SerialNumber string `plist:"SerialNumber"`
	Supervised   bool   `plist:"Supervised"`
	Token        []byte `plist:"Token"`
	PushMagic    string `plist:"PushMagic"`
	UnlockToken  []byte `plist:"UnlockToken"`
}

// AckStatus is the device-reported outcome of a delivered command.
type AckStatus string

const (
	AckAcknowledged       AckStatus = "Acknowledged"
	AckError              AckStatus = "Error"
	AckCommandFormatError AckStatus = "CommandFormatError"
	AckNotNow             AckStatus = "NotNow"
	// AckIdle is a plain poll: the device has nothing to report and asks for
	// the next command.
	AckIdle AckStatus = "Idle"
)

// ParseAckStatus validates a command-response status.
func ParseAckStatus(value string) (AckStatus, bool) {
	switch AckStatus(value) {
	case AckAcknowledged, AckError, AckCommandFormatError, AckNotNow, AckIdle:
		return AckStatus(value), true
	}
	return "", false
}

// AckMessage is the device-sent command-exchange body. The typed response
// fields are populated according to the acknowledged command's request type.
type AckMessage struct {
	UDID                     string              `plist:"UDID"`
	CommandUUID              string              `plist:"CommandUUID"`
	Status                   string              `plist:"Status"`
	ErrorChain               []ErrorChainItem    `plist:"ErrorChain"`
	ProfileList              []ProfileListItem   `plist:"ProfileList"`
	SecurityInfo             *SecurityInfo       `plist:"SecurityInfo"`
	InstalledApplicationList []InstalledApp      `plist:"InstalledApplicationList"`
	GlobalRestrictions       *RestrictionsReport `plist:"GlobalRestrictions"`
}

// ErrorChainItem carries the device's failure detail.
type ErrorChainItem struct {
	ErrorCode            int    `plist:"ErrorCode"`
	ErrorDomain          string `plist:"ErrorDomain"`
	LocalizedDescription string `plist:"LocalizedDescription"`
}

// ProfileListItem is one entry of a device-reported profile inventory.
type ProfileListItem struct {
	PayloadUUID        string `plist:"PayloadUUID"`
	PayloadIdentifier  string `plist:"PayloadIdentifier"`
	PayloadDisplayName string `plist:"PayloadDisplayName"`
}

// SecurityInfo is the device-reported security posture.
type SecurityInfo struct {
	PasscodePresent              bool `plist:"PasscodePresent"`
	PasscodeCompliant            bool `plist:"PasscodeCompliant"`
	PasscodeCompliantWithProfile bool `plist:"PasscodeCompliantWithProfiles"`
	EnrolledViaDEP               bool `plist:"EnrolledViaDEP"`
	IsSupervised                 bool `plist:"IsSupervised"`
}

// InstalledApp is one entry of a device-reported application inventory.
type InstalledApp struct {
	Identifier   string `plist:"Identifier"`
	Name         string `plist:"Name"`
	ShortVersion string `plist:"ShortVersion"`
}

// RestrictionsReport is the device-reported effective restriction state.
type RestrictionsReport struct {
	AllowVPNCreation             bool `plist:"allowVPNCreation"`
	AllowAppInstallation         bool `plist:"allowAppInstallation"`
	AllowAppRemoval              bool `plist:"allowAppRemoval"`
	AllowEraseContentAndSettings bool `plist:"allowEraseContentAndSettings"`
	AllowPasscodeModification    bool `plist:"allowPasscodeModification"`
}

// CommandEnvelope is the plist returned to a polling device: the next queued
// command, or nothing.
type CommandEnvelope struct {
	CommandUUID string         `plist:"CommandUUID"`
	Command     map[string]any `plist:"Command"`
}
