package storage

import (
	"context"

	"github.com/Altrii-recovery/Altrii/internal/model"
)

// Store abstracts durable persistence for the protocol engine. Two
// implementations exist: a bbolt-backed store for single-instance
// deployments and an in-process store used by tests.
type Store interface {
	// Device records.
	UpsertDevice(ctx context.Context, device *model.DeviceRecord) error
	GetDevice(ctx context.Context, udid string) (*model.DeviceRecord, error)
	ListDevices(ctx context.Context) ([]*model.DeviceRecord, error)

	// Sessions.
	PutSession(ctx context.Context, session *model.DeviceSession) error
	GetSession(ctx context.Context, udid string) (*model.DeviceSession, error)
	DeleteSession(ctx context.Context, udid string) error

	// Commands. CommandsByDevice returns a device's commands in enqueue order.
	SaveCommand(ctx context.Context, cmd *model.Command) error
	GetCommand(ctx context.Context, udid, commandUUID string) (*model.Command, error)
	CommandsByDevice(ctx context.Context, udid string) ([]*model.Command, error)

	// Supervision profiles.
	SaveProfile(ctx context.Context, profile *model.SupervisionProfile) error
	GetProfile(ctx context.Context, profileUUID string) (*model.SupervisionProfile, error)
	ProfilesByDevice(ctx context.Context, udid string) ([]*model.SupervisionProfile, error)

	// Enrollment tickets.
	SaveTicket(ctx context.Context, ticket *model.EnrollmentTicket) error
	GetTicket(ctx context.Context, code string) (*model.EnrollmentTicket, error)
	DeleteTicket(ctx context.Context, code string) error
	ListTickets(ctx context.Context) ([]*model.EnrollmentTicket, error)

	// Audit trail.
	AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error
	ListAuditEvents(ctx context.Context) ([]*model.AuditEvent, error)

	Close() error
}
