package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const cycleTimeout = 45 * time.Second

// Scheduler drives the two background loops: inbox reconciliation on
// a short interval and scheduled-send dispatch on a longer one. A
// failing cycle is logged and the next tick proceeds; only Stop ends
// the loop.
type Scheduler struct {
	service          *MessageService
	syncInterval     time.Duration
	dispatchInterval time.Duration
	log              *zap.SugaredLogger

	mu        sync.Mutex
	stopChan  chan struct{}
	isRunning bool
}

func NewScheduler(service *MessageService, syncInterval, dispatchInterval time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		service:          service,
		syncInterval:     syncInterval,
		dispatchInterval: dispatchInterval,
		log:              log,
	}
}

func (sch *Scheduler) Start() error {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	if sch.isRunning {
		sch.log.Info("scheduler already running")
		return nil
	}
	sch.stopChan = make(chan struct{})
	sch.isRunning = true

	go sch.run(sch.stopChan)
	return nil
}

func (sch *Scheduler) run(stop chan struct{}) {
	syncTicker := time.NewTicker(sch.syncInterval)
	dispatchTicker := time.NewTicker(sch.dispatchInterval)
	sch.log.Infow("scheduler started",
		"syncInterval", sch.syncInterval, "dispatchInterval", sch.dispatchInterval)
	for {
		select {
		case <-stop:
			syncTicker.Stop()
			dispatchTicker.Stop()
			sch.log.Info("scheduler stopped")
			return
		case <-syncTicker.C:
			sch.runCycle("inbox sync", func(ctx context.Context) error {
				_, err := sch.service.SyncInbox(ctx)
				return err
			})
		case <-dispatchTicker.C:
			sch.runCycle("scheduled dispatch", func(ctx context.Context) error {
				_, err := sch.service.DispatchScheduled(ctx)
				return err
			})
		}
	}
}

// runCycle isolates one cycle: a timeout bounds a hung gateway, and
// errors or panics never reach the loop.
func (sch *Scheduler) runCycle(name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			sch.log.Errorw("cycle panicked", "cycle", name, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		sch.log.Errorw("cycle failed", "cycle", name, "err", err)
	}
}

func (sch *Scheduler) Stop() error {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	if !sch.isRunning {
		sch.log.Info("scheduler is not running")
		return nil
	}
	close(sch.stopChan)
	sch.isRunning = false
	return nil
}

func (sch *Scheduler) IsRunning() bool {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.isRunning
}
