package models

import "time"

// Machine is the scan state of one physical collection machine.
type Machine struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Active             bool       `json:"active"`
	LastAcceptedScanAt *time.Time `json:"lastAcceptedScanAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// MaintenanceRecord is a scheduled service visit for a machine.
type MaintenanceRecord struct {
	ID        string    `json:"id"`
	MachineID string    `json:"machineId"`
	Date      time.Time `json:"date"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScanCredit records one admitted scan. The pair (MachineID, AcceptedAt) is unique.
type ScanCredit struct {
	ID         string    `json:"id"`
	MachineID  string    `json:"machineId"`
	UserID     string    `json:"userId"`
	Points     int64     `json:"points"`
	AcceptedAt time.Time `json:"acceptedAt"`
}

// ScanAdmission is the single atomic mutation applied for an accepted scan:
// move the machine timestamp from PrevScanAt to AcceptedAt and credit the user.
type ScanAdmission struct {
	CreditID   string
	MachineID  string
	UserID     string
	Points     int64
	PrevScanAt *time.Time
	AcceptedAt time.Time
}

// Community is a private group users join with a six-character code.
type Community struct {
	ID          string    `json:"id"`
	OwnerUserID string    `json:"ownerUserId"`
	Name        string    `json:"name"`
	JoinCode    string    `json:"joinCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Voucher is an immutable catalog item bought with redeemable points.
type Voucher struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	PointCost int64      `json:"pointCost"`
	Expiry    *time.Time `json:"expiry,omitempty"`
	PromoCode string     `json:"promoCode"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Expired reports whether the voucher's expiry is before now.
func (v Voucher) Expired(now time.Time) bool {
	return v.Expiry != nil && v.Expiry.Before(now)
}

// ResetPeriod marks a calendar month ("2006-01") whose monthly reset already ran.
type ResetPeriod struct {
	Period     string    `json:"period"`
	ResetAt    time.Time `json:"resetAt"`
	UsersReset int64     `json:"usersReset"`
}
