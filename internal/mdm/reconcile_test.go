package mdm

import (
	"context"
	"testing"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/profile"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliverCommand(t *testing.T, engine *Engine, udid string, requestType model.RequestType) *model.Command {
	t.Helper()
	ctx := context.Background()
	cmd, err := engine.Enqueue(ctx, udid, requestType, nil)
	require.NoError(t, err)
	delivered, err := engine.NextCommand(ctx, udid)
	require.NoError(t, err)
	require.Equal(t, cmd.CommandUUID, delivered.CommandUUID)
	return delivered
}

func auditKinds(t *testing.T, store storage.Store) []model.AuditKind {
	t.Helper()
	events, err := store.ListAuditEvents(context.Background())
	require.NoError(t, err)
	kinds := make([]model.AuditKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func TestProfileListReconciliation(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	enrollForQueue(t, engine, store, "udid-1")

	require.NoError(t, store.SaveProfile(ctx, &model.SupervisionProfile{
		ProfileUUID:   "profile-uuid-1",
		UDID:          "udid-1",
		SecurityLevel: 2,
	}))

	cmd := deliverCommand(t, engine, "udid-1", model.RequestProfileList)
	ack := ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.ProfileList = []ProfileListItem{
		{PayloadUUID: "profile-uuid-1", PayloadIdentifier: profile.Identifier},
		{PayloadUUID: "unrelated", PayloadIdentifier: "com.example.wifi"},
	}
	_, err := engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	profiles, err := store.ProfilesByDevice(ctx, "udid-1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.True(t, profiles[0].Installed)
	require.NotNil(t, profiles[0].InstallDate)

	device, err := store.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	assert.True(t, device.MDMEnrolled)

	// A later report without the supervision profile reverses both.
	cmd = deliverCommand(t, engine, "udid-1", model.RequestProfileList)
	ack = ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.ProfileList = []ProfileListItem{
		{PayloadUUID: "unrelated", PayloadIdentifier: "com.example.wifi"},
	}
	_, err = engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	profiles, err = store.ProfilesByDevice(ctx, "udid-1")
	require.NoError(t, err)
	assert.False(t, profiles[0].Installed)
	assert.Nil(t, profiles[0].InstallDate)

	device, err = store.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	assert.False(t, device.MDMEnrolled)
}

func TestSecurityInfoUpdatesSupervisedFlag(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	enrollForQueue(t, engine, store, "udid-1")

	cmd := deliverCommand(t, engine, "udid-1", model.RequestSecurityInfo)
	ack := ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.SecurityInfo = &SecurityInfo{IsSupervised: false, PasscodePresent: true}
	_, err := engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	session, err := store.GetSession(ctx, "udid-1")
	require.NoError(t, err)
	assert.False(t, session.Supervised)

	// Posture reports are durable history, not just a log line.
	events, err := store.ListAuditEvents(ctx)
	require.NoError(t, err)
	var detail string
	for _, ev := range events {
		if ev.Kind == model.AuditSecurityInfo {
			detail = ev.Detail
		}
	}
	require.NotEmpty(t, detail)
	assert.Contains(t, detail, "passcode_present=true")
	assert.Contains(t, detail, "supervised=false")
}

func TestAppListReconciliationFlagsProhibitedApps(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	enrollForQueue(t, engine, store, "udid-1")

	cmd := deliverCommand(t, engine, "udid-1", model.RequestInstalledApplicationList)
	ack := ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.InstalledApplicationList = []InstalledApp{
		{Identifier: "com.apple.mobilesafari", Name: "Safari", ShortVersion: "17.4"},
		{Identifier: "com.google.chrome.ios", Name: "Chrome", ShortVersion: "123.0"},
		{Identifier: "com.example.benign", Name: "Benign", ShortVersion: "1.0"},
	}
	_, err := engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	device, err := store.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	require.Len(t, device.AppInventory, 3)

	events, err := store.ListAuditEvents(ctx)
	require.NoError(t, err)
	var detail string
	for _, ev := range events {
		if ev.Kind == model.AuditProhibitedApps {
			detail = ev.Detail
		}
	}
	require.NotEmpty(t, detail, "expected a prohibited apps audit event")
	assert.Contains(t, detail, "com.google.chrome.ios")
	assert.NotContains(t, detail, "com.apple.mobilesafari")
	assert.NotContains(t, detail, "com.example.benign")
}

func TestRestrictionsReconciliationRecordsViolations(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	enrollForQueue(t, engine, store, "udid-1")

	device, err := store.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	device.SecurityLevel = 3
	require.NoError(t, store.UpsertDevice(ctx, device))

	cmd := deliverCommand(t, engine, "udid-1", model.RequestRestrictions)
	ack := ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.GlobalRestrictions = &RestrictionsReport{
		AllowVPNCreation:             true,
		AllowAppInstallation:         true,
		AllowEraseContentAndSettings: false,
	}
	_, err = engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	events, err := store.ListAuditEvents(ctx)
	require.NoError(t, err)
	var detail string
	for _, ev := range events {
		if ev.Kind == model.AuditRestrictionViolations {
			detail = ev.Detail
		}
	}
	require.NotEmpty(t, detail)
	assert.Contains(t, detail, "vpn creation allowed")
	assert.Contains(t, detail, "app installation allowed")
	assert.NotContains(t, detail, "factory reset allowed")
}

func TestRestrictionsCompliantDeviceIsQuiet(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()
	enrollForQueue(t, engine, store, "udid-1")

	device, err := store.GetDevice(ctx, "udid-1")
	require.NoError(t, err)
	device.SecurityLevel = 2
	require.NoError(t, store.UpsertDevice(ctx, device))

	cmd := deliverCommand(t, engine, "udid-1", model.RequestRestrictions)
	ack := ackOf("udid-1", cmd.CommandUUID, AckAcknowledged)
	ack.GlobalRestrictions = &RestrictionsReport{AllowVPNCreation: false, AllowAppInstallation: true}
	_, err = engine.HandleCommandResponse(ctx, ack, nil)
	require.NoError(t, err)

	assert.NotContains(t, auditKinds(t, store), model.AuditRestrictionViolations)
}
