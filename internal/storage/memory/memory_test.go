package memory

import (
	"context"
	"testing"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetDevice(ctx, "udid-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	device := &model.DeviceRecord{UDID: "udid-1", UserID: "user-1", Name: "Test iPhone"}
	require.NoError(t, s.UpsertDevice(ctx, device))

	got, err := s.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.False(t, got.CreatedAt.IsZero())

	// Mutating the returned copy must not leak into the store.
	got.Name = "Renamed"
	again, err := s.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	assert.Equal(t, "Test iPhone", again.Name)
}

func TestCommandsPreserveEnqueueOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, uuid := range []string{"cmd-a", "cmd-b", "cmd-c"} {
		require.NoError(t, s.SaveCommand(ctx, &model.Command{
			CommandUUID: uuid,
			UDID:        "udid-1",
			RequestType: model.RequestProfileList,
			Status:      model.CommandPending,
		}))
	}
	require.NoError(t, s.SaveCommand(ctx, &model.Command{
		CommandUUID: "other-device",
		UDID:        "udid-2",
		RequestType: model.RequestDeviceLock,
		Status:      model.CommandPending,
	}))

	commands, err := s.CommandsByDevice(ctx, "udid-1")
	require.NoError(t, err)
	require.Len(t, commands, 3)
	assert.Equal(t, "cmd-a", commands[0].CommandUUID)
	assert.Equal(t, "cmd-b", commands[1].CommandUUID)
	assert.Equal(t, "cmd-c", commands[2].CommandUUID)
	assert.Less(t, commands[0].Seq, commands[1].Seq)
	assert.Less(t, commands[1].Seq, commands[2].Seq)
}

func TestSaveCommandUpdatesInPlace(t *testing.T) {
	s := New()
	ctx := context.Background()

	cmd := &model.Command{
		CommandUUID: "cmd-a",
		UDID:        "udid-1",
		RequestType: model.RequestSecurityInfo,
		Status:      model.CommandPending,
	}
	require.NoError(t, s.SaveCommand(ctx, cmd))
	seq := cmd.Seq
	require.NotZero(t, seq)

	cmd.Status = model.CommandSent
	require.NoError(t, s.SaveCommand(ctx, cmd))

	commands, err := s.CommandsByDevice(ctx, "udid-1")
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, model.CommandSent, commands[0].Status)
	assert.Equal(t, seq, commands[0].Seq)
}

func TestSessionLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &model.DeviceSession{UDID: "udid-1", PushMagic: "magic"}))
	session, err := s.GetSession(ctx, "udid-1")
	require.NoError(t, err)
	assert.Equal(t, "magic", session.PushMagic)

	require.NoError(t, s.DeleteSession(ctx, "udid-1"))
	_, err = s.GetSession(ctx, "udid-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting an absent session is not an error.
	require.NoError(t, s.DeleteSession(ctx, "udid-1"))
}

func TestProfilesByDeviceFiltersAndSorts(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveProfile(ctx, &model.SupervisionProfile{ProfileUUID: "p1", UDID: "udid-1"}))
	require.NoError(t, s.SaveProfile(ctx, &model.SupervisionProfile{ProfileUUID: "p2", UDID: "udid-2"}))

	profiles, err := s.ProfilesByDevice(ctx, "udid-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "p1", profiles[0].ProfileUUID)
}

func TestAuditEventsGetMonotonicIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AppendAuditEvent(ctx, &model.AuditEvent{UDID: "udid-1", Kind: model.AuditAuthenticated}))
	require.NoError(t, s.AppendAuditEvent(ctx, &model.AuditEvent{UDID: "udid-1", Kind: model.AuditCheckedOut}))

	events, err := s.ListAuditEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, events[0].ID, events[1].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}
