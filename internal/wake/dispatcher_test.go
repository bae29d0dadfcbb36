package wake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakePusher) Wake(_ context.Context, _ []byte, pushMagic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushMagic)
	return f.err
}

func (f *fakePusher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatchCallsPusher(t *testing.T) {
	pusher := &fakePusher{}
	d := NewDispatcher(pusher, memory.New(), zerolog.Nop(), time.Second)
	d.Start()
	defer d.Stop()

	d.Request(Event{UDID: "udid-1", PushToken: []byte{0x01}, PushMagic: "magic-1"})

	waitFor(t, func() bool { return pusher.callCount() == 1 })
}

func TestDispatchFailureIsAuditedNotSurfaced(t *testing.T) {
	store := memory.New()
	pusher := &fakePusher{err: errors.New("apns unreachable")}
	d := NewDispatcher(pusher, store, zerolog.Nop(), time.Second)
	d.Start()
	defer d.Stop()

	d.Request(Event{UDID: "udid-1", PushToken: []byte{0x01}, PushMagic: "magic-1"})

	waitFor(t, func() bool {
		events, err := store.ListAuditEvents(context.Background())
		require.NoError(t, err)
		return len(events) == 1
	})
	events, err := store.ListAuditEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.AuditWakeFailed, events[0].Kind)
	assert.Contains(t, events[0].Detail, "apns unreachable")
}

func TestNilPusherDropsEvents(t *testing.T) {
	d := NewDispatcher(nil, memory.New(), zerolog.Nop(), time.Second)
	d.Start()

	d.Request(Event{UDID: "udid-1"})
	d.Stop()
}
