// Package ledger implements the points ledger: scan admission, balance
// operations, communities, cohort ranking and the monthly reset. Every
// operation takes the acting user id explicitly.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/payout"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultScanCooldown    = 5 * time.Minute
	DefaultConflictRetries = 5
)

// DefaultPointCashRate is the currency credited per converted point.
var DefaultPointCashRate = decimal.RequireFromString("0.1")

// Config tunes a Service.
type Config struct {
	ScanCooldown    time.Duration
	PointCashRate   decimal.Decimal
	ConflictRetries int
	Now             func() time.Time
	Logger          *slog.Logger
}

// Service runs ledger operations against a LedgerStore.
type Service struct {
	store    storage.LedgerStore
	payouts  payout.Sender
	cooldown time.Duration
	rate     decimal.Decimal
	retries  int
	now      func() time.Time
	log      *slog.Logger
	codes    func() (string, error)
}

// New creates a Service. A nil sender disables bank payouts.
func New(store storage.LedgerStore, sender payout.Sender, cfg Config) *Service {
	if sender == nil {
		sender = payout.Disabled{}
	}
	if cfg.ScanCooldown <= 0 {
		cfg.ScanCooldown = DefaultScanCooldown
	}
	if !cfg.PointCashRate.IsPositive() {
		cfg.PointCashRate = DefaultPointCashRate
	}
	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = DefaultConflictRetries
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:    store,
		payouts:  sender,
		cooldown: cfg.ScanCooldown,
		rate:     cfg.PointCashRate,
		retries:  cfg.ConflictRetries,
		now:      cfg.Now,
		log:      cfg.Logger,
		codes:    GenerateJoinCode,
	}
}

// clock returns the current time at the precision the stores persist.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// errNoChange lets a mutate callback finish successfully without writing.
var errNoChange = errors.New("no change")

// mutateUser re-reads the user and applies fn until SaveUser wins the
// version check, for at most s.retries attempts.
func (s *Service) mutateUser(ctx context.Context, userID string, fn func(u *models.User) error) (models.User, error) {
	if userID == "" {
		return models.User{}, validationf("user id is required")
	}
	for attempt := 1; attempt <= s.retries; attempt++ {
		u, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return models.User{}, storeErr(err, "user "+userID)
		}
		if err := fn(&u); err != nil {
			if errors.Is(err, errNoChange) {
				return u, nil
			}
			return models.User{}, err
		}
		saved, err := s.store.SaveUser(ctx, u)
		if errors.Is(err, storage.ErrConflict) {
			s.log.Debug("user write conflict, retrying", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return models.User{}, storeErr(err, "save user "+userID)
		}
		return saved, nil
	}
	return models.User{}, fmt.Errorf("%w: user %s kept changing after %d attempts", ErrUnavailable, userID, s.retries)
}

// User returns the balance record of userID.
func (s *Service) User(ctx context.Context, userID string) (models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, storeErr(err, "user "+userID)
	}
	return u, nil
}
