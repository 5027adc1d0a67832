package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/points-ledger/internal/models"
)

type ScanRequest struct {
	MachineID string `json:"machineId"`
	Points    *int64 `json:"points"`
}

type ScanResponse struct {
	Accepted       bool      `json:"accepted"`
	CreditedPoints int64     `json:"creditedPoints"`
	AcceptedAt     time.Time `json:"acceptedAt"`
}

type RankResponse struct {
	Cohort models.Cohort `json:"cohort"`
	Rank   int           `json:"rank"`
}

type RedeemRequest struct {
	Cost int64 `json:"cost"`
}

type WalletResponse struct {
	RedeemablePoints int64           `json:"redeemablePoints"`
	WalletBalance    decimal.Decimal `json:"walletBalance"`
	BankAccountRef   string          `json:"bankAccountRef,omitempty"`
	PayoutPending    bool            `json:"payoutPending"`
}

type BankAccountRequest struct {
	AccountRef string `json:"accountRef"`
}

type PayoutResponse struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletBalance decimal.Decimal `json:"walletBalance"`
}

type CreateCommunityRequest struct {
	Name string `json:"name"`
}

type JoinCommunityRequest struct {
	Code string `json:"code"`
}

type CreateMachineRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type CreateMaintenanceRequest struct {
	Date  time.Time `json:"date"`
	Notes string    `json:"notes"`
}

type CreateVoucherRequest struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	PointCost int64      `json:"pointCost"`
	Expiry    *time.Time `json:"expiry"`
	PromoCode string     `json:"promoCode"`
}

type ResetResponse struct {
	UsersReset int64 `json:"usersReset"`
}
