package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"slapp/internal/pkg/clock"
)

// Expirer periodically expires PENDING reservations older than the TTL.
type Expirer struct {
	svc      *Service
	clock    clock.Clock
	log      logrus.FieldLogger
	ttl      time.Duration
	interval time.Duration

	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewExpirer(svc *Service, clk clock.Clock, log logrus.FieldLogger, ttl, interval time.Duration) *Expirer {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Expirer{
		svc:      svc,
		clock:    clk,
		log:      log,
		ttl:      ttl,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
func (e *Expirer) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.log.WithFields(logrus.Fields{"ttl": e.ttl.String(), "interval": e.interval.String()}).Info("starting reservation expirer")
	go e.run()
}

// Stop blocks until the running sweep, if any, has finished.
func (e *Expirer) Stop() {
	e.once.Do(func() {
		close(e.stopCh)
	})
	if !e.started.Load() {
		return
	}
	<-e.done
	e.log.Info("reservation expirer stopped")
}

// RunOnce expires everything created before now minus the TTL.
func (e *Expirer) RunOnce(ctx context.Context) (int, error) {
	cutoff := e.clock.Now().Add(-e.ttl)
	return e.svc.RunExpirySweep(ctx, cutoff)
}

func (e *Expirer) run() {
	defer close(e.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	e.tick(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick(ctx)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Expirer) tick(ctx context.Context) {
	if _, err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
		e.log.WithError(err).Error("expiry sweep failed")
	}
}
