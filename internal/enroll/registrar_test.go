package enroll

import (
	"context"
	"testing"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistrar(t *testing.T) *Registrar {
	t.Helper()
	return NewRegistrar(memory.New(), 24*time.Hour, zerolog.Nop())
}

func TestResolveSucceedsExactlyOnce(t *testing.T) {
	r := testRegistrar(t)
	ctx := context.Background()

	ticket, err := r.IssueCode(ctx, []byte("profile-bytes"), "udid-1", "user-1", "profile-uuid-1")
	require.NoError(t, err)
	require.Len(t, ticket.Code, codeLength)

	got, err := r.Resolve(ctx, ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, []byte("profile-bytes"), got)

	// Codes are not reusable, even immediately and well before expiry.
	_, err = r.Resolve(ctx, ticket.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestResolveUnknownCode(t *testing.T) {
	r := testRegistrar(t)
	_, err := r.Resolve(context.Background(), "NOSUCHCODE99")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestResolveExpiredCode(t *testing.T) {
	r := testRegistrar(t)
	ctx := context.Background()

	ticket, err := r.IssueCode(ctx, []byte("profile-bytes"), "udid-1", "user-1", "profile-uuid-1")
	require.NoError(t, err)

	r.now = func() time.Time { return ticket.ExpiresAt.Add(time.Minute) }

	_, err = r.Resolve(ctx, ticket.Code)
	assert.ErrorIs(t, err, ErrExpired)

	// The ticket was evicted; a second attempt reports invalid, not expired.
	_, err = r.Resolve(ctx, ticket.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestIssueSweepsExpiredTickets(t *testing.T) {
	store := memory.New()
	r := NewRegistrar(store, 24*time.Hour, zerolog.Nop())
	ctx := context.Background()

	stale, err := r.IssueCode(ctx, []byte("stale"), "udid-1", "user-1", "profile-uuid-1")
	require.NoError(t, err)

	r.now = func() time.Time { return stale.ExpiresAt.Add(time.Hour) }
	_, err = r.IssueCode(ctx, []byte("fresh"), "udid-2", "user-2", "profile-uuid-2")
	require.NoError(t, err)

	tickets, err := store.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "udid-2", tickets[0].UDID)
}

func TestDownloadedTicketRetainedForAudit(t *testing.T) {
	store := memory.New()
	r := NewRegistrar(store, 24*time.Hour, zerolog.Nop())
	ctx := context.Background()

	ticket, err := r.IssueCode(ctx, []byte("profile-bytes"), "udid-1", "user-1", "profile-uuid-1")
	require.NoError(t, err)
	_, err = r.Resolve(ctx, ticket.Code)
	require.NoError(t, err)

	stored, err := store.GetTicket(ctx, ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, model.TicketDownloaded, stored.State)
	require.NotNil(t, stored.DownloadedAt)

	events, err := store.ListAuditEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditProfileDownloaded, events[0].Kind)
	assert.Equal(t, "udid-1", events[0].UDID)
}
