package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var (
	bucketDevices  = []byte("devices")
	bucketSessions = []byte("sessions")
	bucketCommands = []byte("commands")
	bucketProfiles = []byte("profiles")
	bucketTickets  = []byte("tickets")
	bucketAudit    = []byte("audit")
)

// Store is a BoltDB-backed Store implementation.
type Store struct {
	db *bolt.DB
}

// New initialises the Bolt store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			bucketDevices, bucketSessions, bucketCommands,
			bucketProfiles, bucketTickets, bucketAudit,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// UpsertDevice stores or updates a device record.
func (s *Store) UpsertDevice(ctx context.Context, device *model.DeviceRecord) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	payload, err := json.Marshal(device)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).Put([]byte(device.UDID), payload)
	})
}

// GetDevice fetches a device record by UDID.
func (s *Store) GetDevice(ctx context.Context, udid string) (*model.DeviceRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var device *model.DeviceRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDevices).Get([]byte(udid))
		if raw == nil {
			return nil
		}
		device = new(model.DeviceRecord)
		return json.Unmarshal(raw, device)
	})
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, storage.ErrNotFound
	}
	return device, nil
}

// ListDevices returns all device records.
func (s *Store) ListDevices(ctx context.Context) ([]*model.DeviceRecord, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var devices []*model.DeviceRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDevices).ForEach(func(_, v []byte) error {
			var device model.DeviceRecord
			if err := json.Unmarshal(v, &device); err != nil {
				return err
			}
			devices = append(devices, &device)
			return nil
		})
	})
	return devices, err
}

// PutSession stores the live session for a device.
func (s *Store) PutSession(ctx context.Context, session *model.DeviceSession) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(session.UDID), payload)
	})
}

// GetSession fetches the session for a device.
func (s *Store) GetSession(ctx context.Context, udid string) (*model.DeviceSession, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var session *model.DeviceSession
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSessions).Get([]byte(udid))
		if raw == nil {
			return nil
		}
		session = new(model.DeviceSession)
		return json.Unmarshal(raw, session)
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

// DeleteSession removes a session. Deleting an absent session is not an error.
func (s *Store) DeleteSession(ctx context.Context, udid string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(udid))
	})
}

// commandKey orders commands per device by assignment sequence. Keys share
// the device UDID as prefix so a range scan yields one device's queue.
func commandKey(udid string, seq uint64) []byte {
	key := make([]byte, 0, len(udid)+9)
	key = append(key, udid...)
	key = append(key, 0x00)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// SaveCommand persists a command. The first save assigns the per-store
// sequence number that fixes the command's position in its device queue.
func (s *Store) SaveCommand(ctx context.Context, cmd *model.Command) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketCommands)
		if cmd.Seq == 0 {
			seq, err := bkt.NextSequence()
			if err != nil {
				return err
			}
			cmd.Seq = seq
		}
		payload, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		return bkt.Put(commandKey(cmd.UDID, cmd.Seq), payload)
	})
}

// GetCommand fetches one command of a device by its UUID.
func (s *Store) GetCommand(ctx context.Context, udid, commandUUID string) (*model.Command, error) {
	commands, err := s.CommandsByDevice(ctx, udid)
	if err != nil {
		return nil, err
	}
	for _, cmd := range commands {
		if cmd.CommandUUID == commandUUID {
			return cmd, nil
		}
	}
	return nil, storage.ErrNotFound
}

// CommandsByDevice returns a device's commands in enqueue order.
func (s *Store) CommandsByDevice(ctx context.Context, udid string) ([]*model.Command, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	prefix := append([]byte(udid), 0x00)
	var commands []*model.Command
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCommands).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var cmd model.Command
			if err := json.Unmarshal(v, &cmd); err != nil {
				return err
			}
			commands = append(commands, &cmd)
		}
		return nil
	})
	return commands, err
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// SaveProfile persists a supervision profile keyed by its UUID.
func (s *Store) SaveProfile(ctx context.Context, profile *model.SupervisionProfile) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).Put([]byte(profile.ProfileUUID), payload)
	})
}

// GetProfile fetches a profile by UUID.
func (s *Store) GetProfile(ctx context.Context, profileUUID string) (*model.SupervisionProfile, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var profile *model.SupervisionProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketProfiles).Get([]byte(profileUUID))
		if raw == nil {
			return nil
		}
		profile = new(model.SupervisionProfile)
		return json.Unmarshal(raw, profile)
	})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, storage.ErrNotFound
	}
	return profile, nil
}

// ProfilesByDevice returns all profiles built for a device.
func (s *Store) ProfilesByDevice(ctx context.Context, udid string) ([]*model.SupervisionProfile, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var profiles []*model.SupervisionProfile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(_, v []byte) error {
			var profile model.SupervisionProfile
			if err := json.Unmarshal(v, &profile); err != nil {
				return err
			}
			if profile.UDID == udid {
				profiles = append(profiles, &profile)
			}
			return nil
		})
	})
	return profiles, err
}

// SaveTicket persists an enrollment ticket keyed by code.
func (s *Store) SaveTicket(ctx context.Context, ticket *model.EnrollmentTicket) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTickets).Put([]byte(ticket.Code), payload)
	})
}

// GetTicket fetches a ticket by code.
func (s *Store) GetTicket(ctx context.Context, code string) (*model.EnrollmentTicket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var ticket *model.EnrollmentTicket
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTickets).Get([]byte(code))
		if raw == nil {
			return nil
		}
		ticket = new(model.EnrollmentTicket)
		return json.Unmarshal(raw, ticket)
	})
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, storage.ErrNotFound
	}
	return ticket, nil
}

// DeleteTicket evicts a ticket by code.
func (s *Store) DeleteTicket(ctx context.Context, code string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTickets).Delete([]byte(code))
	})
}

// ListTickets returns all enrollment tickets.
func (s *Store) ListTickets(ctx context.Context) ([]*model.EnrollmentTicket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var tickets []*model.EnrollmentTicket
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTickets).ForEach(func(_, v []byte) error {
			var ticket model.EnrollmentTicket
			if err := json.Unmarshal(v, &ticket); err != nil {
				return err
			}
			tickets = append(tickets, &ticket)
			return nil
		})
	})
	return tickets, err
}

// AppendAuditEvent stores an audit trail entry.
func (s *Store) AppendAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketAudit)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		event.ID = id
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, payload)
	})
}

// ListAuditEvents returns the audit trail in append order.
func (s *Store) ListAuditEvents(ctx context.Context) ([]*model.AuditEvent, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	var events []*model.AuditEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudit).ForEach(func(_, v []byte) error {
			var event model.AuditEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			events = append(events, &event)
			return nil
		})
	})
	return events, err
}
