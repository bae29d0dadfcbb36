package mdm

import (
	"time"

	"github.com/Altrii-recovery/Altrii/internal/registry"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/Altrii-recovery/Altrii/internal/wake"
	"github.com/rs/zerolog"
)

// Engine implements the supervision protocol: check-in handling, the
// per-device command queue and exchange, and reconciliation of
// device-reported state. All same-device operations are serialized through
// the registry's per-device lock; durable writes happen in message order.
type Engine struct {
	store    storage.Store
	registry *registry.Registry
	waker    wake.Requester
	log      zerolog.Logger
	now      func() time.Time
}

// NewEngine wires the protocol engine. The waker may be nil when no push
// collaborator is configured; wake requests are then skipped.
func NewEngine(store storage.Store, reg *registry.Registry, waker wake.Requester, log zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: reg,
		waker:    waker,
		log:      log,
		now:      time.Now,
	}
}

func (e *Engine) requestWake(event wake.Event) {
	if e.waker == nil {
		return
	}
	e.waker.Request(event)
}
