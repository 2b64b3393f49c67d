package export

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
)

// Scheduler runs export passes periodically, and on demand.
type Scheduler struct {
	exporter *Exporter
	interval time.Duration
	l        *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler builds a scheduler running the exporter every interval.
//
// A zero interval disables periodic passes: exports then only run when triggered.
func NewScheduler(exporter *Exporter, interval time.Duration, l *zap.Logger) *Scheduler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Scheduler{
		exporter: exporter,
		interval: interval,
		l:        l,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an export pass. Requests made while a pass is pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start runs the scheduler loop in the background
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer s.wg.Done()
		s.run(ctx, stop)
	}(s.stopCh)

	return nil
}

// Stop the scheduler loop, and wait for a running pass to complete
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}) {
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-tick:
			s.export(ctx)
		case <-s.trigger:
			s.export(ctx)
		}
	}
}

func (s *Scheduler) export(ctx context.Context) {
	if s.exporter.Dirty().Len() == 0 {
		return
	}
	if err := s.exporter.ExportToDisk(ctx); err != nil {
		s.l.Error("export pass failed", zap.String("chain", errors.Chain(err)))
	}
}
