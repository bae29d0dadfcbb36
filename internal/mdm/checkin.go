package mdm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Altrii-recovery/Altrii/internal/metrics"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/Altrii-recovery/Altrii/internal/wake"
)

// HandleCheckin dispatches a decoded check-in message. The per-device state
// machine is: Unenrolled -[Authenticate]-> Active <-[TokenUpdate]-> Active
// -[CheckOut]-> Unenrolled. Out-of-order messages fail closed.
func (e *Engine) HandleCheckin(ctx context.Context, msg *CheckinMessage) error {
	kind, ok := ParseMessageType(msg.MessageType)
	if !ok {
		metrics.CheckinsTotal.WithLabelValues("unknown", "rejected").Inc()
		return fmt.Errorf("unsupported check-in message type %q", msg.MessageType)
	}
	if msg.UDID == "" {
		metrics.CheckinsTotal.WithLabelValues(string(kind), "rejected").Inc()
		return fmt.Errorf("check-in message missing UDID")
	}

	e.registry.Lock(msg.UDID)
	defer e.registry.Unlock(msg.UDID)

	var err error
	switch kind {
	case MessageAuthenticate:
		err = e.authenticate(ctx, msg)
	case MessageTokenUpdate:
		err = e.tokenUpdate(ctx, msg)
	case MessageCheckOut:
		err = e.checkOut(ctx, msg)
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.CheckinsTotal.WithLabelValues(string(kind), result).Inc()
	metrics.SessionsActive.Set(float64(e.registry.Count()))
	return err
}

// authenticate resolves the device against its durable record and upserts
// the session. It is idempotent: the device retries the message on any
// failure and a repeat succeeds harmlessly.
func (e *Engine) authenticate(ctx context.Context, msg *CheckinMessage) error {
	device, err := e.store.GetDevice(ctx, msg.UDID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.log.Warn().Str("udid", msg.UDID).Msg("authenticate from unknown device")
			return ErrUnknownDevice
		}
		return fmt.Errorf("load device record: %w", err)
	}
	if device.CheckedOutAt != nil {
		device.CheckedOutAt = nil
		if err := e.store.UpsertDevice(ctx, device); err != nil {
			return fmt.Errorf("update device record: %w", err)
		}
	}

	session := e.session(ctx, msg.UDID)
	if session == nil {
		session = &model.DeviceSession{UDID: msg.UDID}
	}
	session.OSVersion = msg.OSVersion
	session.BuildVersion = msg.BuildVersion
	session.Model = msg.ModelName
	session.SerialNumber = msg.SerialNumber
	session.Supervised = msg.Supervised
	session.LastCheckIn = e.now().UTC()

	// Durable write first; the in-memory registry only reflects what is on
	// disk. If either write fails the whole check-in fails and the device
	// retries.
	if err := e.store.PutSession(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	e.registry.Put(session)

	if err := e.store.AppendAuditEvent(ctx, &model.AuditEvent{
		UDID: msg.UDID,
		Kind: model.AuditAuthenticated,
		Detail: fmt.Sprintf("os=%s model=%s serial=%s supervised=%t",
			msg.OSVersion, msg.ModelName, msg.SerialNumber, msg.Supervised),
	}); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	e.log.Info().Str("udid", msg.UDID).Str("os", msg.OSVersion).
		Bool("supervised", msg.Supervised).Msg("device authenticated")
	return nil
}

// tokenUpdate rotates the push material. This is the only check-in message
// that triggers a wake, which guarantees the dispatcher always pushes to a
// fresh token.
func (e *Engine) tokenUpdate(ctx context.Context, msg *CheckinMessage) error {
	session := e.session(ctx, msg.UDID)
	if session == nil {
		e.log.Warn().Str("udid", msg.UDID).Msg("token update without session")
		return ErrNoSession
	}

	session.PushToken = msg.Token
	session.PushMagic = msg.PushMagic
	if len(msg.UnlockToken) > 0 {
		session.UnlockToken = msg.UnlockToken
	}
	session.LastCheckIn = e.now().UTC()

	if err := e.store.PutSession(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	e.registry.Put(session)

	pending, err := e.pendingCount(ctx, msg.UDID)
	if err != nil {
		return fmt.Errorf("count pending commands: %w", err)
	}
	if pending > 0 && session.HasPushToken() {
		e.requestWake(wake.Event{
			UDID:      session.UDID,
			PushToken: session.PushToken,
			PushMagic: session.PushMagic,
		})
	}
	e.log.Info().Str("udid", msg.UDID).Int("pending", pending).Msg("push token updated")
	return nil
}

// checkOut removes the session and clears the device's supervision state.
// Repeating it is harmless, but a check-out from a device that never
// enrolled is a protocol violation and fails closed.
func (e *Engine) checkOut(ctx context.Context, msg *CheckinMessage) error {
	session := e.session(ctx, msg.UDID)
	if session == nil {
		device, err := e.store.GetDevice(ctx, msg.UDID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNoSession
			}
			return fmt.Errorf("load device record: %w", err)
		}
		if device.CheckedOutAt == nil {
			e.log.Warn().Str("udid", msg.UDID).Msg("check-out without session")
			return ErrNoSession
		}
		e.log.Debug().Str("udid", msg.UDID).Msg("repeated check-out, ignoring")
		return nil
	}

	if err := e.store.DeleteSession(ctx, msg.UDID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	e.registry.Delete(msg.UDID)

	device, err := e.store.GetDevice(ctx, msg.UDID)
	if err == nil {
		now := e.now().UTC()
		device.MDMEnrolled = false
		device.SecurityLevel = 0
		device.CheckedOutAt = &now
		if err := e.store.UpsertDevice(ctx, device); err != nil {
			return fmt.Errorf("update device record: %w", err)
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load device record: %w", err)
	}

	if err := e.store.AppendAuditEvent(ctx, &model.AuditEvent{
		UDID: msg.UDID,
		Kind: model.AuditCheckedOut,
	}); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	e.log.Info().Str("udid", msg.UDID).Msg("device checked out")
	return nil
}

// session reads the registry first and falls back to the durable store, so
// sessions survive a process restart.
func (e *Engine) session(ctx context.Context, udid string) *model.DeviceSession {
	if session := e.registry.Get(udid); session != nil {
		return session
	}
	session, err := e.store.GetSession(ctx, udid)
	if err != nil {
		return nil
	}
	e.registry.Put(session)
	return session
}
