package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/registry"
	"github.com/Altrii-recovery/Altrii/internal/storage"
)

// StatusService assembles the operator-facing view of a device. Sessions
// have no server-enforced timeout; staleness is surfaced through the
// online flag and lastCheckIn age, never by evicting the session.
type StatusService struct {
	store           storage.Store
	registry        *registry.Registry
	checkinInterval time.Duration
}

// NewStatusService builds the status service.
func NewStatusService(store storage.Store, reg *registry.Registry, checkinInterval time.Duration) *StatusService {
	if checkinInterval <= 0 {
		checkinInterval = 15 * time.Minute
	}
	return &StatusService{store: store, registry: reg, checkinInterval: checkinInterval}
}

// DeviceStatus reports one device's live state.
func (s *StatusService) DeviceStatus(ctx context.Context, udid string) (*model.DeviceStatus, error) {
	device, err := s.store.GetDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("load device record: %w", err)
	}

	status := &model.DeviceStatus{
		UDID:          udid,
		SecurityLevel: device.SecurityLevel,
	}

	session := s.registry.Get(udid)
	if session == nil {
		if stored, err := s.store.GetSession(ctx, udid); err == nil {
			session = stored
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}
	if session != nil {
		last := session.LastCheckIn
		status.LastCheckIn = &last
		status.Supervised = session.Supervised
		// A device is considered online while within two check-in intervals
		// of its last contact.
		status.Online = time.Since(last) <= 2*s.checkinInterval
	}

	commands, err := s.store.CommandsByDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("load command queue: %w", err)
	}
	for _, cmd := range commands {
		switch cmd.Status {
		case model.CommandPending, model.CommandSent:
			status.PendingCommands++
		case model.CommandFailed:
			status.LastCommandError = fmt.Sprintf("%s: %s", cmd.RequestType, cmd.ErrorDetail)
		}
	}

	profiles, err := s.store.ProfilesByDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	for _, p := range profiles {
		if p.Installed {
			status.ProfileInstalled = true
			break
		}
	}
	return status, nil
}
