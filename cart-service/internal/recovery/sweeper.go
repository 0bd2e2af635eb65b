// Package recovery republishes transaction logs that downstream consumers
// have not acknowledged in time.
package recovery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/delivery"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/pkg/metrics"
	"go.uber.org/zap"
)

var ErrSweepInProgress = errors.New("recovery sweep already running")

type Republisher interface {
	Republish(ctx context.Context, ds *domain.DeliveryStatus) error
	BreakerOpen() bool
}

type Config struct {
	Interval time.Duration
	// Lookback bounds how far back undelivered records are considered.
	Lookback time.Duration
	// MinAge leaves recent records to deliveries still in flight.
	MinAge time.Duration
	// Retention prunes delivered records older than this; zero keeps them.
	Retention time.Duration
	BatchSize int
}

type Result struct {
	Found        int   `json:"found"`
	Republished  int   `json:"republished"`
	Failed       int   `json:"failed"`
	Pruned       int64 `json:"pruned"`
	StoppedEarly bool  `json:"stopped_early"`
}

type Sweeper struct {
	repo    delivery.Repository
	pub     Republisher
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewSweeper(repo delivery.Repository, pub Republisher, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		repo:    repo,
		pub:     pub,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Run triggers a sweep every interval until ctx is done, then waits for the
// sweep in progress. A trigger that fires while a sweep runs is dropped.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	defer s.wg.Wait()

	for {
		select {
		case <-ticker.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
					s.logger.Error("recovery sweep failed", zap.Error(err))
				}
			}()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep republishes one batch of undelivered records. It returns
// ErrSweepInProgress without doing anything if another sweep is running.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.RecoverySweeps.WithLabelValues("skipped").Inc()
		s.logger.Debug("recovery sweep skipped, previous run still active")
		return res, ErrSweepInProgress
	}
	defer s.running.Store(false)

	now := s.now()
	pending, err := s.repo.FindUndelivered(ctx, now.Add(-s.cfg.MinAge), now.Add(-s.cfg.Lookback), s.cfg.BatchSize)
	if err != nil {
		s.metrics.RecoverySweeps.WithLabelValues("error").Inc()
		return res, err
	}
	res.Found = len(pending)

	for _, ds := range pending {
		if ctx.Err() != nil {
			res.StoppedEarly = true
			break
		}
		if s.pub.BreakerOpen() {
			res.StoppedEarly = true
			s.logger.Warn("circuit open, recovery sweep stopping early",
				zap.Int("remaining", len(pending)-res.Republished-res.Failed))
			break
		}
		if err := s.pub.Republish(ctx, ds); err != nil {
			res.Failed++
			s.metrics.RecoveryRepublish.WithLabelValues("failure").Inc()
			continue
		}
		res.Republished++
		s.metrics.RecoveryRepublish.WithLabelValues("success").Inc()
	}

	if s.cfg.Retention > 0 {
		n, err := s.repo.PruneDelivered(ctx, now.Add(-s.cfg.Retention))
		if err != nil {
			s.logger.Warn("prune delivered records failed", zap.Error(err))
		}
		res.Pruned = n
	}

	s.metrics.RecoverySweeps.WithLabelValues("completed").Inc()
	if res.Found > 0 || res.Pruned > 0 {
		s.logger.Info("recovery sweep finished",
			zap.Int("found", res.Found),
			zap.Int("republished", res.Republished),
			zap.Int("failed", res.Failed),
			zap.Int64("pruned", res.Pruned),
			zap.Bool("stopped_early", res.StoppedEarly))
	}
	return res, nil
}
