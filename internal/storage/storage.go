package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/points-ledger/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrConflict indicates a conditional write lost a race; the caller should re-read and retry.
var ErrConflict = errors.New("concurrent modification")

// UserStore captures identity persistence needed by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
}

// LedgerStore is the durable keyed storage behind every ledger operation.
// Writes to a single record are atomic; SaveUser and AdmitScan are
// conditional and return ErrConflict when the stored row moved underneath.
type LedgerStore interface {
	UserStore

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// SaveUser writes balance, membership and bank fields of user if the
	// stored version still equals user.Version, and returns the new row.
	SaveUser(ctx context.Context, user models.User) (models.User, error)

	CreateMachine(ctx context.Context, machine models.Machine) (models.Machine, error)
	GetMachine(ctx context.Context, id string) (models.Machine, error)
	ListMachines(ctx context.Context, activeOnly bool) ([]models.Machine, error)

	// CreateMaintenance records a visit; it returns ErrNotFound for an unknown machine.
	CreateMaintenance(ctx context.Context, record models.MaintenanceRecord) (models.MaintenanceRecord, error)
	// ListMaintenance returns the records of the given machines ordered by date.
	ListMaintenance(ctx context.Context, machineIDs []string) ([]models.MaintenanceRecord, error)

	// AdmitScan moves the machine timestamp from PrevScanAt to AcceptedAt,
	// records the scan credit and credits the user, all or nothing.
	AdmitScan(ctx context.Context, admission models.ScanAdmission) (models.ScanCredit, error)
	ListScans(ctx context.Context, userID string, limit int) ([]models.ScanCredit, error)

	ListCohort(ctx context.Context, cohort models.Cohort) ([]models.CohortMember, error)

	// CreateCommunity inserts the community and adds the owner as a member.
	CreateCommunity(ctx context.Context, community models.Community) (models.Community, error)
	GetCommunity(ctx context.Context, id string) (models.Community, error)
	FindCommunityByCode(ctx context.Context, code string) (models.Community, error)
	ListCommunities(ctx context.Context, ids []string) ([]models.Community, error)
	// AddMembership adds communityID to the user's memberships; adding twice is a no-op.
	AddMembership(ctx context.Context, userID, communityID string) error

	CreateVoucher(ctx context.Context, voucher models.Voucher) (models.Voucher, error)
	GetVoucher(ctx context.Context, id string) (models.Voucher, error)
	ListVouchers(ctx context.Context) ([]models.Voucher, error)

	// ResetMonthlyPoints zeroes monthly points on every user and returns the rows touched.
	ResetMonthlyPoints(ctx context.Context) (int64, error)
	// ResetForPeriod records period and zeroes monthly points in one step.
	// It returns ErrAlreadyExists, touching nothing, when period was recorded before.
	ResetForPeriod(ctx context.Context, period models.ResetPeriod) (int64, error)
}
