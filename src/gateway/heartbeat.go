package gateway

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// heartbeat owns the periodic liveness timer for one connection. It is
// created on HELLO and replaced wholesale on reconnect. The first beat waits
// a random fraction of the interval so many sessions reconnecting at once do
// not ping in lockstep.
//
// The controller does not judge liveness itself: a missed ACK is left to the
// server, which signals RECONNECT/INVALID_SESSION or closes the transport.
type heartbeat struct {
	interval time.Duration
	beat     func()
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// startHeartbeat arms the controller and returns it. beat is called once per
// interval, after an initial jitter delay in [0, interval).
func startHeartbeat(interval time.Duration, logger *slog.Logger, beat func()) *heartbeat {
	h := &heartbeat{
		interval: interval,
		beat:     beat,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *heartbeat) loop() {
	jitter := time.Duration(rand.Float64() * float64(h.interval))
	h.logger.Debug("heartbeat armed", "interval", h.interval, "jitter", jitter)

	initial := time.NewTimer(jitter)
	defer initial.Stop()
	select {
	case <-initial.C:
	case <-h.stopCh:
		return
	}

	h.beat()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-h.stopCh:
			return
		}
	}
}

// stop cancels the controller without emitting a further beat. Idempotent.
func (h *heartbeat) stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}
