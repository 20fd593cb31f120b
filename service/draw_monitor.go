package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/lootery-node/lootery"
	"github.com/vocdoni/lootery-node/log"
)

// DrawMonitor periodically checks whether the current game's in-flight
// randomness request has sat unanswered past its re-issue window, and
// logs so an operator (or a keeper bot polling the draw endpoint) knows
// a re-draw is possible. It never calls Draw itself: re-issuing a
// randomness request is always caller-triggered.
type DrawMonitor struct {
	engine   *lootery.Engine
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewDrawMonitor creates a new DrawMonitor for engine, polling every
// interval.
func NewDrawMonitor(engine *lootery.Engine, interval time.Duration) *DrawMonitor {
	return &DrawMonitor{
		engine:   engine,
		interval: interval,
	}
}

// Start begins polling for a stuck randomness request. It returns an
// error if the service is already running.
func (dm *DrawMonitor) Start(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	dm.cancel = cancel

	go dm.monitor(ctx)
	return nil
}

// Stop halts the monitoring service.
func (dm *DrawMonitor) Stop() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.cancel != nil {
		dm.cancel()
		dm.cancel = nil
	}
}

func (dm *DrawMonitor) monitor(ctx context.Context) {
	ticker := time.NewTicker(dm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.checkRandomnessRequest()
		}
	}
}

func (dm *DrawMonitor) checkRandomnessRequest() {
	game, err := dm.engine.CurrentGame()
	if err != nil {
		log.Warnw("failed to read current game", "err", err.Error())
		return
	}
	if game.State != lootery.StateDrawPending {
		return
	}

	req, err := dm.engine.PendingRandomnessRequest()
	if err != nil {
		log.Warnw("failed to read pending randomness request", "err", err.Error())
		return
	}
	if req.RequestID == ([32]byte{}) {
		return
	}

	age := time.Since(time.Unix(req.IssuedAt, 0))
	if age < lootery.RandomnessRequestTimeout {
		return
	}
	log.Infow("draw re-issue available",
		"gameId", game.ID,
		"requestAge", age.String(),
		"timeout", lootery.RandomnessRequestTimeout.String())
}
