package model

import "time"

// TicketState tracks an enrollment ticket. Tickets are retained after
// download for audit; the state transition is what makes codes single-use.
type TicketState string

const (
	TicketIssued     TicketState = "issued"
	TicketDownloaded TicketState = "downloaded"
)

// EnrollmentTicket binds a single-use, time-boxed code to a built profile.
type EnrollmentTicket struct {
	Code         string      `json:"code"`
	ProfileBytes []byte      `json:"profileBytes"`
	UDID         string      `json:"udid"`
	UserID       string      `json:"userId"`
	ProfileUUID  string      `json:"profileUUID"`
	State        TicketState `json:"state"`
	IssuedAt     time.Time   `json:"issuedAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	DownloadedAt *time.Time  `json:"downloadedAt,omitempty"`
}

// Expired reports whether the ticket is past its expiry at the given instant.
func (t *EnrollmentTicket) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
