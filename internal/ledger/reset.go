package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// PeriodLayout formats the calendar month a reset belongs to.
const PeriodLayout = "2006-01"

// ResetMonthlyPoints zeroes the monthly horizon of every user. Calling it
// again in the same period rewrites zeros and is otherwise a no-op.
func (s *Service) ResetMonthlyPoints(ctx context.Context) (int64, error) {
	n, err := s.store.ResetMonthlyPoints(ctx)
	if err != nil {
		return 0, storeErr(err, "reset monthly points")
	}
	s.log.Info("monthly points reset", "users", n)
	return n, nil
}

// ResetForPeriod runs the monthly reset once for the calendar month of at.
// It reports false when that month was already reset.
func (s *Service) ResetForPeriod(ctx context.Context, at time.Time) (bool, error) {
	period := at.UTC().Format(PeriodLayout)
	n, err := s.store.ResetForPeriod(ctx, models.ResetPeriod{Period: period, ResetAt: s.clock()})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "reset period "+period)
	}
	s.log.Info("monthly points reset for period", "period", period, "users", n)
	return true, nil
}
