package registry

import (
	"sync"
	"testing"

	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	r := New()

	assert.Nil(t, r.Get("udid-1"))
	assert.Zero(t, r.Count())

	r.Put(&model.DeviceSession{UDID: "udid-1", PushMagic: "magic"})
	session := r.Get("udid-1")
	require.NotNil(t, session)
	assert.Equal(t, "magic", session.PushMagic)
	assert.Equal(t, 1, r.Count())

	// The registry hands out copies; callers cannot mutate shared state.
	session.PushMagic = "tampered"
	assert.Equal(t, "magic", r.Get("udid-1").PushMagic)

	r.Delete("udid-1")
	assert.Nil(t, r.Get("udid-1"))
	assert.Zero(t, r.Count())
}

func TestPerDeviceLockSerializes(t *testing.T) {
	r := New()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Lock("udid-1")
			defer r.Unlock("udid-1")
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLocksAreIndependentAcrossDevices(t *testing.T) {
	r := New()
	r.Lock("udid-a")
	defer r.Unlock("udid-a")

	done := make(chan struct{})
	go func() {
		r.Lock("udid-b")
		r.Unlock("udid-b")
		close(done)
	}()
	<-done
}
