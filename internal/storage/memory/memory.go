package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is an in-process Store implementation. It backs unit tests and
// deployments that do not need persistence across restarts.
type Store struct {
	mu       sync.RWMutex
	devices  map[string]*model.DeviceRecord
	sessions map[string]*model.DeviceSession
	commands map[string][]*model.Command
	profiles map[string]*model.SupervisionProfile
	tickets  map[string]*model.EnrollmentTicket
	audit    []*model.AuditEvent
	auditSeq uint64
	cmdSeq   uint64
}

// New creates an empty in-process store.
func New() *Store {
	return &Store{
		devices:  make(map[string]*model.DeviceRecord),
		sessions: make(map[string]*model.DeviceSession),
		commands: make(map[string][]*model.Command),
		profiles: make(map[string]*model.SupervisionProfile),
		tickets:  make(map[string]*model.EnrollmentTicket),
	}
}

// Close is a no-op for the in-process store.
func (s *Store) Close() error { return nil }

func (s *Store) UpsertDevice(_ context.Context, device *model.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	copied := *device
	s.devices[device.UDID] = &copied
	return nil
}

func (s *Store) GetDevice(_ context.Context, udid string) (*model.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	device, ok := s.devices[udid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *device
	return &copied, nil
}

func (s *Store) ListDevices(_ context.Context) ([]*model.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	devices := make([]*model.DeviceRecord, 0, len(s.devices))
	for _, device := range s.devices {
		copied := *device
		devices = append(devices, &copied)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].UDID < devices[j].UDID })
	return devices, nil
}

func (s *Store) PutSession(_ context.Context, session *model.DeviceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.UDID] = &copied
	return nil
}

func (s *Store) GetSession(_ context.Context, udid string) (*model.DeviceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[udid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *Store) DeleteSession(_ context.Context, udid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, udid)
	return nil
}

func (s *Store) SaveCommand(_ context.Context, cmd *model.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Seq == 0 {
		s.cmdSeq++
		cmd.Seq = s.cmdSeq
	}
	copied := *cmd
	queue := s.commands[cmd.UDID]
	for i, existing := range queue {
		if existing.CommandUUID == cmd.CommandUUID {
			queue[i] = &copied
			return nil
		}
	}
	s.commands[cmd.UDID] = append(queue, &copied)
	return nil
}

func (s *Store) GetCommand(_ context.Context, udid, commandUUID string) (*model.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cmd := range s.commands[udid] {
		if cmd.CommandUUID == commandUUID {
			copied := *cmd
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) CommandsByDevice(_ context.Context, udid string) ([]*model.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queue := s.commands[udid]
	commands := make([]*model.Command, 0, len(queue))
	for _, cmd := range queue {
		copied := *cmd
		commands = append(commands, &copied)
	}
	return commands, nil
}

func (s *Store) SaveProfile(_ context.Context, profile *model.SupervisionProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *profile
	s.profiles[profile.ProfileUUID] = &copied
	return nil
}

func (s *Store) GetProfile(_ context.Context, profileUUID string) (*model.SupervisionProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[profileUUID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *Store) ProfilesByDevice(_ context.Context, udid string) ([]*model.SupervisionProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []*model.SupervisionProfile
	for _, profile := range s.profiles {
		if profile.UDID == udid {
			copied := *profile
			profiles = append(profiles, &copied)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})
	return profiles, nil
}

func (s *Store) SaveTicket(_ context.Context, ticket *model.EnrollmentTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ticket
	s.tickets[ticket.Code] = &copied
	return nil
}

func (s *Store) GetTicket(_ context.Context, code string) (*model.EnrollmentTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[code]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (s *Store) DeleteTicket(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, code)
	return nil
}

func (s *Store) ListTickets(_ context.Context) ([]*model.EnrollmentTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tickets := make([]*model.EnrollmentTicket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		copied := *ticket
		tickets = append(tickets, &copied)
	}
	return tickets, nil
}

func (s *Store) AppendAuditEvent(_ context.Context, event *model.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.auditSeq++
	event.ID = s.auditSeq
	copied := *event
	s.audit = append(s.audit, &copied)
	return nil
}

func (s *Store) ListAuditEvents(_ context.Context) ([]*model.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]*model.AuditEvent, 0, len(s.audit))
	for _, event := range s.audit {
		copied := *event
		events = append(events, &copied)
	}
	return events, nil
}
