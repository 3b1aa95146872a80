package worker

import (
	"context"
	"sync"
	"time"

	"github.com/secmon-lab/proteus/pkg/domain/model"
	"github.com/secmon-lab/proteus/pkg/utils/errutil"
	"github.com/secmon-lab/proteus/pkg/utils/logging"
)

const (
	// DefaultInterval matches the hourly schedule users pick cadences against
	DefaultInterval = time.Hour

	// DefaultTickTimeout leaves headroom before the next firing
	DefaultTickTimeout = 50 * time.Minute
)

// TickRunner runs one rotation pass
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) (*model.TickReport, error)
}

// AvatarRotationWorker fires a rotation tick at every interval boundary
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Hosts that run several instances should use the tick command from an external scheduler instead
type AvatarRotationWorker struct {
	runner     TickRunner
	interval   time.Duration
	timeout    time.Duration
	runOnStart bool
	clock      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

type Option func(*AvatarRotationWorker)

// WithTickTimeout bounds each tick
func WithTickTimeout(d time.Duration) Option {
	return func(w *AvatarRotationWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithRunOnStart runs one tick right after Start instead of waiting for the first boundary
func WithRunOnStart(enabled bool) Option {
	return func(w *AvatarRotationWorker) {
		w.runOnStart = enabled
	}
}

// WithClock replaces time.Now, for tests
func WithClock(clock func() time.Time) Option {
	return func(w *AvatarRotationWorker) {
		w.clock = clock
	}
}

func NewAvatarRotationWorker(runner TickRunner, interval time.Duration, opts ...Option) *AvatarRotationWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &AvatarRotationWorker{
		runner:   runner,
		interval: interval,
		timeout:  DefaultTickTimeout,
		clock:    time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the background loop. It does not block.
func (w *AvatarRotationWorker) Start(ctx context.Context) error {
	logging.From(ctx).Info("avatar rotation worker starting",
		"interval", w.interval.String(),
		"tick_timeout", w.timeout.String(),
		"run_on_start", w.runOnStart)

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for the running tick to return
func (w *AvatarRotationWorker) Stop() {
	w.stopOnce.Do(func() {
		logging.Default().Info("avatar rotation worker stopping")
		close(w.stopCh)
	})
	<-w.doneCh
	logging.Default().Info("avatar rotation worker stopped")
}

func (w *AvatarRotationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Stop cancels an in-flight tick as well
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if w.runOnStart {
		w.tick(ctx)
	}

	timer := time.NewTimer(w.untilNextBoundary())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			w.tick(ctx)
			timer.Reset(w.untilNextBoundary())

		case <-w.stopCh:
			logging.From(ctx).Info("avatar rotation worker received stop signal")
			return

		case <-ctx.Done():
			logging.From(ctx).Info("avatar rotation worker context cancelled")
			return
		}
	}
}

// untilNextBoundary returns the wait until the next multiple of interval (top of the hour by default)
func (w *AvatarRotationWorker) untilNextBoundary() time.Duration {
	now := w.clock()
	next := now.Truncate(w.interval).Add(w.interval)
	return next.Sub(now)
}

func (w *AvatarRotationWorker) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	report, err := w.runner.RunTick(ctx, w.clock())
	if err != nil {
		// Log error but continue worker
		_ = errutil.Handle(ctx, err, "avatar rotation tick failed (will retry next interval)")
		return
	}

	logging.From(ctx).Info("avatar rotation tick completed",
		"tick_id", report.TickID,
		"succeeded", report.Succeeded,
		"failed", report.Failed)
}
