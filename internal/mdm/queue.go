package mdm

import (
	"context"
	"fmt"

	"github.com/Altrii-recovery/Altrii/internal/metrics"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/wake"
	"github.com/google/uuid"
)

// Enqueue appends a command to the device's FIFO queue as pending. Nothing
// is sent here: delivery happens when the device polls or is woken. If a
// live session with push material exists, a wake is requested so the device
// polls promptly instead of waiting out its check-in interval.
func (e *Engine) Enqueue(ctx context.Context, udid string, requestType model.RequestType, payload map[string]any) (*model.Command, error) {
	e.registry.Lock(udid)
	defer e.registry.Unlock(udid)

	cmd := &model.Command{
		CommandUUID: uuid.NewString(),
		UDID:        udid,
		RequestType: requestType,
		Payload:     payload,
		Status:      model.CommandPending,
		CreatedAt:   e.now().UTC(),
	}
	if err := e.store.SaveCommand(ctx, cmd); err != nil {
		return nil, fmt.Errorf("persist command: %w", err)
	}
	metrics.CommandsEnqueued.Inc()
	e.log.Info().Str("udid", udid).Str("command_uuid", cmd.CommandUUID).
		Str("request_type", string(requestType)).Msg("command enqueued")

	if session := e.session(ctx, udid); session.HasPushToken() {
		e.requestWake(wake.Event{
			UDID:      udid,
			PushToken: session.PushToken,
			PushMagic: session.PushMagic,
		})
	}
	return cmd, nil
}

// EnqueueVerification queues the four reconciliation commands in one call.
func (e *Engine) EnqueueVerification(ctx context.Context, udid string) ([]*model.Command, error) {
	kinds := []model.RequestType{
		model.RequestProfileList,
		model.RequestSecurityInfo,
		model.RequestInstalledApplicationList,
		model.RequestRestrictions,
	}
	commands := make([]*model.Command, 0, len(kinds))
	for _, kind := range kinds {
		cmd, err := e.Enqueue(ctx, udid, kind, nil)
		if err != nil {
			return commands, err
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

// NextCommand returns the command to deliver to a polling device: the
// in-flight command again if one is outstanding (the device retried), else
// the head of the pending queue, which transitions to sent. Returns nil
// when the queue is empty.
func (e *Engine) NextCommand(ctx context.Context, udid string) (*model.Command, error) {
	e.registry.Lock(udid)
	defer e.registry.Unlock(udid)
	return e.nextLocked(ctx, udid)
}

func (e *Engine) nextLocked(ctx context.Context, udid string) (*model.Command, error) {
	commands, err := e.store.CommandsByDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("load command queue: %w", err)
	}
	for _, cmd := range commands {
		if cmd.Status == model.CommandSent {
			return cmd, nil
		}
	}
	for _, cmd := range commands {
		if cmd.Status != model.CommandPending {
			continue
		}
		cmd.Status = model.CommandSent
		if err := e.store.SaveCommand(ctx, cmd); err != nil {
			return nil, fmt.Errorf("mark command sent: %w", err)
		}
		e.log.Debug().Str("udid", udid).Str("command_uuid", cmd.CommandUUID).
			Str("request_type", string(cmd.RequestType)).Msg("command delivered")
		return cmd, nil
	}
	return nil, nil
}

// HandleCommandResponse processes a device's command-exchange message and
// returns the next command to deliver, if any. The raw body is retained as
// the acknowledged command's response data.
func (e *Engine) HandleCommandResponse(ctx context.Context, ack *AckMessage, raw []byte) (*model.Command, error) {
	status, ok := ParseAckStatus(ack.Status)
	if !ok {
		return nil, fmt.Errorf("unsupported command status %q", ack.Status)
	}
	if ack.UDID == "" {
		return nil, fmt.Errorf("command response missing UDID")
	}

	e.registry.Lock(ack.UDID)
	defer e.registry.Unlock(ack.UDID)

	// An idle poll carries no acknowledgement; just hand over the next
	// queued command.
	if status == AckIdle {
		return e.nextLocked(ctx, ack.UDID)
	}

	inflight, err := e.inflightLocked(ctx, ack.UDID)
	if err != nil {
		return nil, err
	}
	if inflight == nil || inflight.CommandUUID != ack.CommandUUID {
		e.log.Warn().Str("udid", ack.UDID).Str("command_uuid", ack.CommandUUID).
			Msg("response does not match in-flight command")
		return nil, ErrUnknownCommand
	}

	now := e.now().UTC()
	inflight.AcknowledgedAt = &now
	inflight.ResponseData = raw

	if status == AckAcknowledged {
		inflight.Status = model.CommandAcknowledged
		if err := e.store.SaveCommand(ctx, inflight); err != nil {
			return nil, fmt.Errorf("mark command acknowledged: %w", err)
		}
		metrics.CommandsCompleted.WithLabelValues("acknowledged").Inc()
		_ = e.store.AppendAuditEvent(ctx, &model.AuditEvent{
			UDID:   ack.UDID,
			Kind:   model.AuditCommandCompleted,
			Detail: fmt.Sprintf("%s %s", inflight.RequestType, inflight.CommandUUID),
		})
		if err := e.reconcile(ctx, inflight, ack); err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", inflight.RequestType, err)
		}
	} else {
		// Terminal failure. Never retried automatically: blind retry of
		// state-changing commands such as DeviceLock needs human judgement.
		inflight.Status = model.CommandFailed
		inflight.ErrorDetail = errorDetail(status, ack.ErrorChain)
		if err := e.store.SaveCommand(ctx, inflight); err != nil {
			return nil, fmt.Errorf("mark command failed: %w", err)
		}
		metrics.CommandsCompleted.WithLabelValues("failed").Inc()
		_ = e.store.AppendAuditEvent(ctx, &model.AuditEvent{
			UDID:   ack.UDID,
			Kind:   model.AuditCommandFailed,
			Detail: fmt.Sprintf("%s %s: %s", inflight.RequestType, inflight.CommandUUID, inflight.ErrorDetail),
		})
		e.log.Warn().Str("udid", ack.UDID).Str("command_uuid", inflight.CommandUUID).
			Str("detail", inflight.ErrorDetail).Msg("command failed")
	}

	return e.nextLocked(ctx, ack.UDID)
}

// CancelCommand withdraws a not-yet-delivered command. A command already
// reported to the device as sent cannot be cancelled, only superseded.
func (e *Engine) CancelCommand(ctx context.Context, udid, commandUUID string) error {
	e.registry.Lock(udid)
	defer e.registry.Unlock(udid)

	cmd, err := e.store.GetCommand(ctx, udid, commandUUID)
	if err != nil {
		return fmt.Errorf("load command: %w", err)
	}
	if cmd.Status != model.CommandPending {
		return fmt.Errorf("command %s is %s, only pending commands can be cancelled", commandUUID, cmd.Status)
	}
	cmd.Status = model.CommandCancelled
	if err := e.store.SaveCommand(ctx, cmd); err != nil {
		return fmt.Errorf("mark command cancelled: %w", err)
	}
	metrics.CommandsCompleted.WithLabelValues("cancelled").Inc()
	return nil
}

func (e *Engine) inflightLocked(ctx context.Context, udid string) (*model.Command, error) {
	commands, err := e.store.CommandsByDevice(ctx, udid)
	if err != nil {
		return nil, fmt.Errorf("load command queue: %w", err)
	}
	for _, cmd := range commands {
		if cmd.Status == model.CommandSent {
			return cmd, nil
		}
	}
	return nil, nil
}

func (e *Engine) pendingCount(ctx context.Context, udid string) (int, error) {
	commands, err := e.store.CommandsByDevice(ctx, udid)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, cmd := range commands {
		if cmd.Status == model.CommandPending || cmd.Status == model.CommandSent {
			count++
		}
	}
	return count, nil
}

// Envelope renders a command as the plist structure delivered to devices.
func Envelope(cmd *model.Command) *CommandEnvelope {
	body := map[string]any{
		"RequestType": string(cmd.RequestType),
	}
	for k, v := range cmd.Payload {
		body[k] = v
	}
	return &CommandEnvelope{
		CommandUUID: cmd.CommandUUID,
		Command:     body,
	}
}

func errorDetail(status AckStatus, chain []ErrorChainItem) string {
	if len(chain) == 0 {
		return string(status)
	}
	first := chain[0]
	return fmt.Sprintf("%s: %s %d (%s)", status, first.ErrorDomain, first.ErrorCode, first.LocalizedDescription)
}
