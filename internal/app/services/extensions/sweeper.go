package extensions

import (
	"context"
	"sync"
	"time"

	"github.com/openpledge/sponsorships/internal/app/metrics"
	auditsvc "github.com/openpledge/sponsorships/internal/app/services/audit"
	"github.com/openpledge/sponsorships/internal/app/storage"
	"github.com/openpledge/sponsorships/pkg/logger"
)

const sweeperActor = "system"

// Sweeper periodically rejects PENDING extension requests older than the
// configured TTL. It is opt-in; a zero TTL disables the whole mechanism and
// requests stay actionable indefinitely.
type Sweeper struct {
	store    storage.ExtensionStore
	recorder *auditsvc.Recorder
	log      *logger.Logger

	ttl      time.Duration
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper builds a sweeper with the given pending TTL. The sweep interval
// defaults to a tenth of the TTL, clamped to [1m, 1h].
func NewSweeper(store storage.ExtensionStore, recorder *auditsvc.Recorder, ttl time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("extension-sweeper")
	}
	interval := ttl / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		recorder: recorder,
		log:      log,
		ttl:      ttl,
		interval: interval,
	}
}

// Name implements system.Service.
func (s *Sweeper) Name() string { return "extension-sweeper" }

// Start begins the background sweep loop. With a zero TTL it is a no-op.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.ttl <= 0 {
		s.log.Info("pending TTL disabled; sweeper idle")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx)
	s.log.WithField("ttl", s.ttl.String()).Info("extension sweeper started")
	return nil
}

// Stop halts the sweep loop and waits for the current pass to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass and returns the number of requests it rejected.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)
	stale, err := s.store.ListPendingRequestsBefore(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("pending request scan failed")
		return 0
	}

	expired := 0
	for _, req := range stale {
		if _, err := s.store.RejectExtensionRequest(ctx, req.Token); err != nil {
			// Likely resolved between scan and reject. Not a problem.
			s.log.WithError(err).WithField("token", req.Token).Debug("stale request reject skipped")
			continue
		}
		s.recorder.Record(ctx, "Extension request expired.", sweeperActor,
			string(req.Status), "REJECTED")
		metrics.RecordExtensionResolution("expired")
		expired++
	}
	if expired > 0 {
		s.log.WithField("count", expired).Info("expired stale extension requests")
	}
	return expired
}
