package mdm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/profile"
	"github.com/Altrii-recovery/Altrii/internal/storage"
)

// reconcile applies a typed reconciliation step after an acknowledged
// command. Every step is detection-only: violations are recorded, never
// automatically remediated.
func (e *Engine) reconcile(ctx context.Context, cmd *model.Command, ack *AckMessage) error {
	switch cmd.RequestType {
	case model.RequestProfileList:
		return e.reconcileProfileList(ctx, cmd.UDID, ack.ProfileList)
	case model.RequestSecurityInfo:
		return e.reconcileSecurityInfo(ctx, cmd.UDID, ack.SecurityInfo)
	case model.RequestInstalledApplicationList:
		return e.reconcileAppList(ctx, cmd.UDID, ack.InstalledApplicationList)
	case model.RequestRestrictions:
		return e.reconcileRestrictions(ctx, cmd.UDID, ack.GlobalRestrictions)
	}
	// Other request types carry no reportable state to reconcile.
	return nil
}

// reconcileProfileList marks our supervision profiles installed or not based
// on the device-reported inventory, and keeps the device's enrollment flag
// in line with whether the supervision profile is present at all.
func (e *Engine) reconcileProfileList(ctx context.Context, udid string, reported []ProfileListItem) error {
	reportedUUIDs := make(map[string]struct{}, len(reported))
	supervisionPresent := false
	for _, item := range reported {
		if item.PayloadIdentifier == profile.Identifier {
			supervisionPresent = true
			reportedUUIDs[item.PayloadUUID] = struct{}{}
		}
	}

	profiles, err := e.store.ProfilesByDevice(ctx, udid)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	now := e.now().UTC()
	for _, p := range profiles {
		_, installed := reportedUUIDs[p.ProfileUUID]
		if installed == p.Installed {
			continue
		}
		p.Installed = installed
		if installed {
			p.InstallDate = &now
		} else {
			p.InstallDate = nil
		}
		if err := e.store.SaveProfile(ctx, p); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
	}

	device, err := e.store.GetDevice(ctx, udid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load device record: %w", err)
	}
	if device.MDMEnrolled != supervisionPresent {
		device.MDMEnrolled = supervisionPresent
		if err := e.store.UpsertDevice(ctx, device); err != nil {
			return fmt.Errorf("update device record: %w", err)
		}
	}
	e.log.Info().Str("udid", udid).Bool("supervision_present", supervisionPresent).
		Int("reported_profiles", len(reported)).Msg("profile list reconciled")
	return nil
}

// reconcileSecurityInfo records the reported posture in the audit trail. No
// automatic remediation.
func (e *Engine) reconcileSecurityInfo(ctx context.Context, udid string, info *SecurityInfo) error {
	if info == nil {
		return nil
	}
	if session := e.session(ctx, udid); session != nil && session.Supervised != info.IsSupervised {
		session.Supervised = info.IsSupervised
		if err := e.store.PutSession(ctx, session); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
		e.registry.Put(session)
	}
	if err := e.store.AppendAuditEvent(ctx, &model.AuditEvent{
		UDID: udid,
		Kind: model.AuditSecurityInfo,
		Detail: fmt.Sprintf("supervised=%t passcode_present=%t passcode_compliant=%t",
			info.IsSupervised, info.PasscodePresent, info.PasscodeCompliant),
	}); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	e.log.Info().Str("udid", udid).
		Bool("supervised", info.IsSupervised).
		Bool("passcode_present", info.PasscodePresent).
		Bool("passcode_compliant", info.PasscodeCompliant).
		Msg("security info recorded")
	return nil
}

// reconcileAppList replaces the stored inventory and cross-references it
// against the circumvention denylist. System apps are exempt; a supervised
// device cannot remove them anyway.
func (e *Engine) reconcileAppList(ctx context.Context, udid string, reported []InstalledApp) error {
	device, err := e.store.GetDevice(ctx, udid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load device record: %w", err)
	}

	denylisted := make(map[string]struct{})
	for _, id := range profile.CircumventionDenylist(3) {
		denylisted[id] = struct{}{}
	}

	inventory := make([]model.AppInfo, 0, len(reported))
	var prohibited []string
	for _, app := range reported {
		inventory = append(inventory, model.AppInfo{
			Identifier: app.Identifier,
			Name:       app.Name,
			Version:    app.ShortVersion,
		})
		if strings.HasPrefix(app.Identifier, "com.apple.") {
			continue
		}
		if _, ok := denylisted[app.Identifier]; ok {
			prohibited = append(prohibited, app.Identifier)
		}
	}

	device.AppInventory = inventory
	if err := e.store.UpsertDevice(ctx, device); err != nil {
		return fmt.Errorf("update device record: %w", err)
	}

	if len(prohibited) > 0 {
		if err := e.store.AppendAuditEvent(ctx, &model.AuditEvent{
			UDID:   udid,
			Kind:   model.AuditProhibitedApps,
			Detail: strings.Join(prohibited, ", "),
		}); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		e.log.Warn().Str("udid", udid).Strs("apps", prohibited).Msg("prohibited apps detected")
	}
	return nil
}

// reconcileRestrictions compares the reported capability flags against the
// minimum required set for the device's configured security level.
func (e *Engine) reconcileRestrictions(ctx context.Context, udid string, report *RestrictionsReport) error {
	if report == nil {
		return nil
	}
	device, err := e.store.GetDevice(ctx, udid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load device record: %w", err)
	}

	var violations []string
	if device.SecurityLevel >= 2 && report.AllowVPNCreation {
		violations = append(violations, "vpn creation allowed")
	}
	if device.SecurityLevel >= 3 {
		if report.AllowAppInstallation {
			violations = append(violations, "app installation allowed")
		}
		if report.AllowEraseContentAndSettings {
			violations = append(violations, "factory reset allowed")
		}
	}

	if len(violations) > 0 {
		if err := e.store.AppendAuditEvent(ctx, &model.AuditEvent{
			UDID:   udid,
			Kind:   model.AuditRestrictionViolations,
			Detail: strings.Join(violations, ", "),
		}); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		e.log.Warn().Str("udid", udid).Int("security_level", device.SecurityLevel).
			Strs("violations", violations).Msg("restriction violations detected")
	}
	return nil
}
