package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/payout"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// RedeemVoucher spends cost redeemable points on voucherID. Redeeming a
// voucher the user already holds succeeds without touching the balance.
func (s *Service) RedeemVoucher(ctx context.Context, userID, voucherID string, cost int64) (models.User, error) {
	voucherID = strings.TrimSpace(voucherID)
	if voucherID == "" {
		return models.User{}, validationf("voucher id is required")
	}
	if cost <= 0 {
		return models.User{}, validationf("voucher cost must be positive, got %d", cost)
	}
	v, err := s.store.GetVoucher(ctx, voucherID)
	if err != nil {
		return models.User{}, storeErr(err, "voucher "+voucherID)
	}
	if v.PointCost != cost {
		return models.User{}, validationf("voucher %s costs %d points, not %d", voucherID, v.PointCost, cost)
	}

	u, err := s.mutateUser(ctx, userID, func(u *models.User) error {
		if u.HasRedeemed(voucherID) {
			return errNoChange
		}
		if v.Expired(s.clock()) {
			return validationf("voucher %s has expired", voucherID)
		}
		if u.RedeemablePoints < cost {
			return fmt.Errorf("%w: %d points available, voucher costs %d", ErrInsufficientBalance, u.RedeemablePoints, cost)
		}
		u.RedeemablePoints -= cost
		u.RedeemedVoucherIDs = append(u.RedeemedVoucherIDs, voucherID)
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.log.Info("voucher redeemed", "user_id", userID, "voucher_id", voucherID, "cost", cost)
	return u, nil
}

// ConvertPointsToCash moves every redeemable point into the wallet at the
// configured rate. A user with no redeemable points is left unchanged.
func (s *Service) ConvertPointsToCash(ctx context.Context, userID string) (models.User, error) {
	var credited decimal.Decimal
	u, err := s.mutateUser(ctx, userID, func(u *models.User) error {
		if u.RedeemablePoints == 0 {
			return errNoChange
		}
		credited = decimal.NewFromInt(u.RedeemablePoints).Mul(s.rate)
		u.WalletBalance = u.WalletBalance.Add(credited)
		u.RedeemablePoints = 0
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	if credited.IsPositive() {
		s.log.Info("points converted to cash", "user_id", userID, "credited", credited.String())
	}
	return u, nil
}

// SetBankAccount overwrites the user's payout account reference.
func (s *Service) SetBankAccount(ctx context.Context, userID, accountRef string) (models.User, error) {
	accountRef = strings.TrimSpace(accountRef)
	if accountRef == "" {
		return models.User{}, validationf("bank account reference is required")
	}
	return s.mutateUser(ctx, userID, func(u *models.User) error {
		if u.BankAccountRef == accountRef {
			return errNoChange
		}
		u.BankAccountRef = accountRef
		return nil
	})
}

// PayoutResult is the outcome of SendCashToBank.
type PayoutResult struct {
	Amount decimal.Decimal `json:"amount"`
	User   models.User     `json:"user"`
}

// SendCashToBank pays the wallet out to the user's bank account. The
// wallet is only debited after the payout collaborator accepts; while a
// payout is in flight the user is marked so a second one is refused.
func (s *Service) SendCashToBank(ctx context.Context, userID string) (PayoutResult, error) {
	var req payout.Request
	_, err := s.mutateUser(ctx, userID, func(u *models.User) error {
		if u.PayoutPending {
			return fmt.Errorf("%w: a payout is already in progress", ErrConflict)
		}
		if u.BankAccountRef == "" {
			return validationf("no bank account set")
		}
		if !u.WalletBalance.IsPositive() {
			return fmt.Errorf("%w: wallet is empty", ErrInsufficientBalance)
		}
		req = payout.Request{UserID: u.ID, Amount: u.WalletBalance, AccountRef: u.BankAccountRef}
		u.PayoutPending = true
		return nil
	})
	if err != nil {
		return PayoutResult{}, err
	}

	// The outcome must be recorded even if the caller goes away.
	settleCtx := context.WithoutCancel(ctx)

	if sendErr := s.payouts.Send(ctx, req); sendErr != nil {
		s.log.Warn("bank payout failed", "user_id", userID, "amount", req.Amount.String(), "error", sendErr)
		if _, err := s.mutateUser(settleCtx, userID, func(u *models.User) error {
			u.PayoutPending = false
			return nil
		}); err != nil {
			s.log.Error("release payout hold failed", "user_id", userID, "error", err)
		}
		return PayoutResult{}, fmt.Errorf("%w: bank payout: %v", ErrUnavailable, sendErr)
	}

	u, err := s.mutateUser(settleCtx, userID, func(u *models.User) error {
		u.WalletBalance = u.WalletBalance.Sub(req.Amount)
		u.PayoutPending = false
		return nil
	})
	if err != nil {
		s.log.Error("payout sent but wallet debit failed; payout hold kept",
			"user_id", userID, "amount", req.Amount.String(), "account_ref", req.AccountRef, "error", err)
		return PayoutResult{}, err
	}
	s.log.Info("bank payout sent", "user_id", userID, "amount", req.Amount.String())
	return PayoutResult{Amount: req.Amount, User: u}, nil
}

// Vouchers lists the redeemable catalog.
func (s *Service) Vouchers(ctx context.Context) ([]models.Voucher, error) {
	vs, err := s.store.ListVouchers(ctx)
	if err != nil {
		return nil, storeErr(err, "list vouchers")
	}
	return vs, nil
}

// Voucher fetches a single catalog entry.
func (s *Service) Voucher(ctx context.Context, voucherID string) (models.Voucher, error) {
	v, err := s.store.GetVoucher(ctx, voucherID)
	if err != nil {
		return models.Voucher{}, storeErr(err, "voucher "+voucherID)
	}
	return v, nil
}

// AddVoucher creates a catalog voucher.
func (s *Service) AddVoucher(ctx context.Context, v models.Voucher) (models.Voucher, error) {
	v.Title = strings.TrimSpace(v.Title)
	v.PromoCode = strings.TrimSpace(v.PromoCode)
	if v.Title == "" {
		return models.Voucher{}, validationf("voucher title is required")
	}
	if v.PointCost <= 0 {
		return models.Voucher{}, validationf("voucher point cost must be positive")
	}
	created, err := s.store.CreateVoucher(ctx, v)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.Voucher{}, validationf("voucher %s already exists", v.ID)
	}
	if err != nil {
		return models.Voucher{}, storeErr(err, "create voucher")
	}
	return created, nil
}

// MyVouchers returns the vouchers the user redeemed, latest expiry first;
// vouchers without an expiry come last.
func (s *Service) MyVouchers(ctx context.Context, userID string) ([]models.Voucher, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Voucher, 0, len(u.RedeemedVoucherIDs))
	for _, id := range u.RedeemedVoucherIDs {
		v, err := s.store.GetVoucher(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "voucher "+id)
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Expiry, out[j].Expiry
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})
	return out, nil
}

// ReleasePayoutHold clears a payout hold left behind by a crash or a failed
// wallet debit. The operator must first confirm whether the bank transfer
// went out; the wallet is not touched.
func (s *Service) ReleasePayoutHold(ctx context.Context, userID string) (models.User, error) {
	released := false
	u, err := s.mutateUser(ctx, userID, func(u *models.User) error {
		if !u.PayoutPending {
			return errNoChange
		}
		u.PayoutPending = false
		released = true
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	if released {
		s.log.Warn("payout hold released by operator", "user_id", userID, "wallet", u.WalletBalance.String())
	}
	return u, nil
}
