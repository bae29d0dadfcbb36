package wake

import (
	"context"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/metrics"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/rs/zerolog"
)

// Pusher wakes a device through the push-delivery collaborator.
type Pusher interface {
	Wake(ctx context.Context, pushToken []byte, pushMagic string) error
}

// Requester accepts wake requests. Protocol handlers depend on this
// interface so their tests run without any network I/O.
type Requester interface {
	Request(event Event)
}

// Event asks the dispatcher to wake one device.
type Event struct {
	UDID      string
	PushToken []byte
	PushMagic string
}

// Dispatcher consumes wake events from a buffered channel and calls the
// push collaborator. Push is best effort: failures are logged and recorded
// in the audit trail, never surfaced to protocol handlers. The device's own
// polling cadence is the retry mechanism.
type Dispatcher struct {
	pusher  Pusher
	store   storage.Store
	log     zerolog.Logger
	timeout time.Duration
	eventCh chan Event
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDispatcher builds a dispatcher. A nil pusher is allowed; events are
// then dropped with a log line, which keeps the engine functional in
// environments without a configured push collaborator.
func NewDispatcher(pusher Pusher, store storage.Store, log zerolog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		pusher:  pusher,
		store:   store,
		log:     log,
		timeout: timeout,
		eventCh: make(chan Event, 128),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop terminates the dispatch loop and waits for it to drain.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

// Request queues a wake event. It never blocks; if the buffer is full the
// event is dropped, since a wake is only a hint to poll sooner.
func (d *Dispatcher) Request(event Event) {
	select {
	case d.eventCh <- event:
	default:
		d.log.Warn().Str("udid", event.UDID).Msg("wake queue full, dropping event")
		metrics.WakeDispatches.WithLabelValues("dropped").Inc()
	}
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)
	for {
		select {
		case event := <-d.eventCh:
			d.dispatch(event)
		case <-d.stopCh:
			return
		}
	}
}

func (d *Dispatcher) dispatch(event Event) {
	if d.pusher == nil {
		d.log.Debug().Str("udid", event.UDID).Msg("no push collaborator configured, skipping wake")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.pusher.Wake(ctx, event.PushToken, event.PushMagic); err != nil {
		d.log.Warn().Err(err).Str("udid", event.UDID).Msg("wake push failed")
		metrics.WakeDispatches.WithLabelValues("failure").Inc()
		if d.store != nil {
			_ = d.store.AppendAuditEvent(ctx, &model.AuditEvent{
				UDID:   event.UDID,
				Kind:   model.AuditWakeFailed,
				Detail: err.Error(),
			})
		}
		return
	}
	d.log.Debug().Str("udid", event.UDID).Msg("wake push dispatched")
	metrics.WakeDispatches.WithLabelValues("success").Inc()
}
