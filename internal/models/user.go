package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// User is the balance record for one identity: the three point horizons,
// the cash wallet, and the profile attributes used as cohort filters.
type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	PasswordHash  string     `json:"-"`
	City          string     `json:"city,omitempty"`
	Neighbourhood string     `json:"neighbourhood,omitempty"`
	BirthDate     *time.Time `json:"birthDate,omitempty"`

	LifetimePoints   int64           `json:"lifetimePoints"`
	RedeemablePoints int64           `json:"redeemablePoints"`
	MonthlyPoints    int64           `json:"monthlyPoints"`
	WalletBalance    decimal.Decimal `json:"walletBalance"`
	BankAccountRef   string          `json:"bankAccountRef,omitempty"`
	PayoutPending    bool            `json:"payoutPending"`

	RedeemedVoucherIDs []string `json:"redeemedVoucherIds"`
	Communities        []string `json:"communities"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRedeemed reports whether the voucher id is already in the redeemed set.
func (u User) HasRedeemed(voucherID string) bool {
	return slices.Contains(u.RedeemedVoucherIDs, voucherID)
}

// InCommunity reports whether the user is a member of the community.
func (u User) InCommunity(communityID string) bool {
	return slices.Contains(u.Communities, communityID)
}

// BirthYear returns the year of the birth date, or 0 when unknown.
func (u User) BirthYear() int {
	if u.BirthDate == nil {
		return 0
	}
	return u.BirthDate.Year()
}

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	out := u
	out.RedeemedVoucherIDs = slices.Clone(u.RedeemedVoucherIDs)
	out.Communities = slices.Clone(u.Communities)
	if u.BirthDate != nil {
		bd := *u.BirthDate
		out.BirthDate = &bd
	}
	return out
}
