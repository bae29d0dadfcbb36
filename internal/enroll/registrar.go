package enroll

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/metrics"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCode covers unknown codes and codes that were already
	// downloaded; the two are indistinguishable to the caller on purpose.
	ErrInvalidCode = errors.New("invalid enrollment code")
	// ErrExpired means the ticket was valid but past its expiry. The ticket
	// is evicted on this path.
	ErrExpired = errors.New("enrollment code expired")
)

// codeAlphabet avoids ambiguous characters since users may type codes by hand.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 12

// Registrar issues time-boxed, single-use enrollment codes resolving to a
// built profile document.
type Registrar struct {
	store storage.Store
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time
}

// NewRegistrar builds a Registrar. TTL defaults to 24 hours.
func NewRegistrar(store storage.Store, ttl time.Duration, log zerolog.Logger) *Registrar {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registrar{store: store, ttl: ttl, log: log, now: time.Now}
}

// IssueCode mints a single-use code bound to the given profile bytes. It
// also opportunistically sweeps expired tickets; expiry is enforced at
// resolve time regardless, so the sweep is housekeeping, not correctness.
func (r *Registrar) IssueCode(ctx context.Context, profileBytes []byte, udid, userID, profileUUID string) (*model.EnrollmentTicket, error) {
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate enrollment code: %w", err)
	}
	now := r.now().UTC()
	ticket := &model.EnrollmentTicket{
		Code:         code,
		ProfileBytes: profileBytes,
		UDID:         udid,
		UserID:       userID,
		ProfileUUID:  profileUUID,
		State:        model.TicketIssued,
		IssuedAt:     now,
		ExpiresAt:    now.Add(r.ttl),
	}
	if err := r.store.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("save ticket: %w", err)
	}
	r.sweepExpired(ctx, now)
	r.log.Info().Str("udid", udid).Str("profile_uuid", profileUUID).
		Time("expires_at", ticket.ExpiresAt).Msg("enrollment code issued")
	return ticket, nil
}

// Resolve exchanges a code for the profile bytes exactly once. Expired
// tickets are evicted; downloaded tickets are retained for audit but report
// ErrInvalidCode on any later attempt.
func (r *Registrar) Resolve(ctx context.Context, code string) ([]byte, error) {
	ticket, err := r.store.GetTicket(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.EnrollmentResolutions.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("load ticket: %w", err)
	}
	now := r.now().UTC()
	if ticket.Expired(now) {
		if err := r.store.DeleteTicket(ctx, code); err != nil {
			return nil, fmt.Errorf("evict expired ticket: %w", err)
		}
		metrics.EnrollmentResolutions.WithLabelValues("expired").Inc()
		return nil, ErrExpired
	}
	if ticket.State != model.TicketIssued {
		metrics.EnrollmentResolutions.WithLabelValues("reused").Inc()
		return nil, ErrInvalidCode
	}

	ticket.State = model.TicketDownloaded
	ticket.DownloadedAt = &now
	if err := r.store.SaveTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("mark ticket downloaded: %w", err)
	}
	_ = r.store.AppendAuditEvent(ctx, &model.AuditEvent{
		UDID:   ticket.UDID,
		Kind:   model.AuditProfileDownloaded,
		Detail: ticket.ProfileUUID,
	})
	metrics.EnrollmentResolutions.WithLabelValues("success").Inc()
	r.log.Info().Str("udid", ticket.UDID).Str("profile_uuid", ticket.ProfileUUID).
		Msg("enrollment profile downloaded")
	return ticket.ProfileBytes, nil
}

func (r *Registrar) sweepExpired(ctx context.Context, now time.Time) {
	tickets, err := r.store.ListTickets(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("enrollment sweep failed")
		return
	}
	for _, ticket := range tickets {
		if ticket.State == model.TicketIssued && ticket.Expired(now) {
			if err := r.store.DeleteTicket(ctx, ticket.Code); err != nil {
				r.log.Warn().Err(err).Str("udid", ticket.UDID).Msg("evict expired ticket failed")
			}
		}
	}
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
