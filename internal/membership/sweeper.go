package membership

import (
	"context"
	"time"

	"fittrack/internal/logger"
)

// Sweeper periodically expires lapsed memberships. Booking decisions derive
// expiry on their own, so a missed run only delays renewals and reporting.
type Sweeper struct {
	service  Service
	interval time.Duration
}

func NewSweeper(service Service, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

func (s *Sweeper) Start(ctx context.Context) {
	logger.Info("membership sweeper started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("membership sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	expired, renewed, err := s.service.ExpireLapsed(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("membership sweep failed", "error", err)
		return
	}
	if expired > 0 {
		logger.Info("membership sweep finished", "expired", expired, "renewed", renewed)
	}
}
