// Package memory provides an in-process LedgerStore guarded by a single
// RWMutex. It backs tests and STORAGE_DRIVER=memory local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

var _ storage.LedgerStore = (*Store)(nil)

// Store holds all ledger state in memory.
type Store struct {
	mu          sync.RWMutex
	users       map[string]models.User
	userOrder   []string
	machines    map[string]models.Machine
	scans       []models.ScanCredit
	scanKeys    map[string]struct{}
	maintenance []models.MaintenanceRecord
	communities map[string]models.Community
	codes       map[string]string
	vouchers    map[string]models.Voucher
	periods     map[string]models.ResetPeriod
	now         func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]models.User),
		machines:    make(map[string]models.Machine),
		scanKeys:    make(map[string]struct{}),
		communities: make(map[string]models.Community),
		codes:       make(map[string]string),
		vouchers:    make(map[string]models.Voucher),
		periods:     make(map[string]models.ResetPeriod),
		now:         time.Now,
	}
}

// Close is a no-op kept for parity with the postgres store.
func (s *Store) Close() {}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CreateUser inserts a new user with zeroed counters.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, exists := s.users[user.ID]; exists {
		return models.User{}, storage.ErrAlreadyExists
	}
	now := s.now().UTC()
	user.LifetimePoints, user.RedeemablePoints, user.MonthlyPoints = 0, 0, 0
	user.WalletBalance = decimal.Zero
	user.RedeemedVoucherIDs = []string{}
	if user.Communities == nil {
		user.Communities = []string{}
	}
	user.Version = 1
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = user.Clone()
	s.userOrder = append(s.userOrder, user.ID)
	return user, nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u.Clone(), nil
}

// FindByUsernameOrEmail fetches the first user matching the identifier as username or email.
func (s *Store) FindByUsernameOrEmail(_ context.Context, identifier string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.userOrder {
		u := s.users[id]
		if u.Username == identifier || u.Email == identifier {
			return u.Clone(), nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// SaveUser overwrites the mutable ledger fields when the version matches.
func (s *Store) SaveUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if current.Version != user.Version {
		return models.User{}, storage.ErrConflict
	}
	user.LifetimePoints = current.LifetimePoints
	if err := checkBalances(user); err != nil {
		return models.User{}, err
	}
	current.RedeemablePoints = user.RedeemablePoints
	current.WalletBalance = user.WalletBalance
	current.BankAccountRef = user.BankAccountRef
	current.PayoutPending = user.PayoutPending
	current.RedeemedVoucherIDs = slices.Clone(user.RedeemedVoucherIDs)
	current.Communities = slices.Clone(user.Communities)
	current.Version++
	current.UpdatedAt = s.now().UTC()
	s.users[user.ID] = current
	return current.Clone(), nil
}

// checkBalances mirrors the CHECK constraints of the postgres schema.
func checkBalances(u models.User) error {
	if u.RedeemablePoints < 0 || u.RedeemablePoints > u.LifetimePoints {
		return fmt.Errorf("redeemable points %d out of range [0,%d]", u.RedeemablePoints, u.LifetimePoints)
	}
	if u.WalletBalance.IsNegative() {
		return fmt.Errorf("wallet balance %s is negative", u.WalletBalance)
	}
	return nil
}

// CreateMachine registers a machine.
func (s *Store) CreateMachine(_ context.Context, machine models.Machine) (models.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if machine.ID == "" {
		machine.ID = uuid.NewString()
	}
	if _, exists := s.machines[machine.ID]; exists {
		return models.Machine{}, storage.ErrAlreadyExists
	}
	machine.CreatedAt = s.now().UTC()
	machine.LastAcceptedScanAt = nil
	s.machines[machine.ID] = machine
	return machine, nil
}

// GetMachine fetches a machine by id.
func (s *Store) GetMachine(_ context.Context, id string) (models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[id]
	if !ok {
		return models.Machine{}, storage.ErrNotFound
	}
	return m, nil
}

// ListMachines returns machines ordered by name.
func (s *Store) ListMachines(_ context.Context, activeOnly bool) ([]models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Machine, 0, len(s.machines))
	for _, m := range s.machines {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateMaintenance appends a maintenance record for an existing machine.
func (s *Store) CreateMaintenance(_ context.Context, record models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machines[record.MachineID]; !ok {
		return models.MaintenanceRecord{}, storage.ErrNotFound
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Date = record.Date.UTC()
	record.CreatedAt = s.now().UTC()
	s.maintenance = append(s.maintenance, record)
	return record, nil
}

// ListMaintenance returns the records of the given machines ordered by date.
func (s *Store) ListMaintenance(_ context.Context, machineIDs []string) ([]models.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.MaintenanceRecord{}
	for _, r := range s.maintenance {
		if slices.Contains(machineIDs, r.MachineID) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// AdmitScan applies the timestamp move, the credit record and the user credit under one lock.
func (s *Store) AdmitScan(_ context.Context, a models.ScanAdmission) (models.ScanCredit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[a.MachineID]
	if !ok {
		return models.ScanCredit{}, storage.ErrNotFound
	}
	if !sameInstant(m.LastAcceptedScanAt, a.PrevScanAt) {
		return models.ScanCredit{}, storage.ErrConflict
	}
	u, ok := s.users[a.UserID]
	if !ok {
		return models.ScanCredit{}, storage.ErrNotFound
	}
	key := scanKey(a.MachineID, a.AcceptedAt)
	if _, dup := s.scanKeys[key]; dup {
		return models.ScanCredit{}, storage.ErrAlreadyExists
	}

	accepted := a.AcceptedAt.UTC()
	m.LastAcceptedScanAt = &accepted
	s.machines[m.ID] = m

	u.LifetimePoints += a.Points
	u.RedeemablePoints += a.Points
	u.MonthlyPoints += a.Points
	u.Version++
	u.UpdatedAt = accepted
	s.users[u.ID] = u

	credit := models.ScanCredit{
		ID:         a.CreditID,
		MachineID:  a.MachineID,
		UserID:     a.UserID,
		Points:     a.Points,
		AcceptedAt: accepted,
	}
	if credit.ID == "" {
		credit.ID = uuid.NewString()
	}
	s.scans = append(s.scans, credit)
	s.scanKeys[key] = struct{}{}
	return credit, nil
}

func scanKey(machineID string, at time.Time) string {
	return machineID + "|" + at.UTC().Format(time.RFC3339Nano)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ListScans returns the user's most recent scans first.
func (s *Store) ListScans(_ context.Context, userID string, limit int) ([]models.ScanCredit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ScanCredit
	for i := len(s.scans) - 1; i >= 0; i-- {
		if s.scans[i].UserID != userID {
			continue
		}
		out = append(out, s.scans[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListCohort projects every user matching the cohort, in signup order.
func (s *Store) ListCohort(_ context.Context, cohort models.Cohort) ([]models.CohortMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CohortMember
	for _, id := range s.userOrder {
		u := s.users[id]
		if !cohort.Matches(u) {
			continue
		}
		out = append(out, models.CohortMember{UserID: u.ID, Username: u.Username, MonthlyPoints: u.MonthlyPoints})
	}
	return out, nil
}

// CreateCommunity inserts the community and adds the owner as a member.
func (s *Store) CreateCommunity(_ context.Context, c models.Community) (models.Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[c.OwnerUserID]
	if !ok {
		return models.Community{}, storage.ErrNotFound
	}
	if _, taken := s.codes[c.JoinCode]; taken {
		return models.Community{}, storage.ErrAlreadyExists
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.communities[c.ID]; exists {
		return models.Community{}, storage.ErrAlreadyExists
	}
	c.CreatedAt = s.now().UTC()
	s.communities[c.ID] = c
	s.codes[c.JoinCode] = c.ID
	s.addMembershipLocked(owner, c.ID)
	return c, nil
}

// GetCommunity fetches a community by id.
func (s *Store) GetCommunity(_ context.Context, id string) (models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.communities[id]
	if !ok {
		return models.Community{}, storage.ErrNotFound
	}
	return c, nil
}

// FindCommunityByCode fetches a community by its join code.
func (s *Store) FindCommunityByCode(_ context.Context, code string) (models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return models.Community{}, storage.ErrNotFound
	}
	return s.communities[id], nil
}

// ListCommunities returns the communities with the given ids, skipping unknown ids.
func (s *Store) ListCommunities(_ context.Context, ids []string) ([]models.Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Community, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.communities[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// AddMembership adds communityID to the user's membership set.
func (s *Store) AddMembership(_ context.Context, userID, communityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.communities[communityID]; !ok {
		return storage.ErrNotFound
	}
	s.addMembershipLocked(u, communityID)
	return nil
}

func (s *Store) addMembershipLocked(u models.User, communityID string) {
	if u.InCommunity(communityID) {
		return
	}
	u.Communities = append(slices.Clone(u.Communities), communityID)
	u.Version++
	u.UpdatedAt = s.now().UTC()
	s.users[u.ID] = u
}

// CreateVoucher inserts a catalog voucher.
func (s *Store) CreateVoucher(_ context.Context, v models.Voucher) (models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if _, exists := s.vouchers[v.ID]; exists {
		return models.Voucher{}, storage.ErrAlreadyExists
	}
	v.CreatedAt = s.now().UTC()
	s.vouchers[v.ID] = v
	return v, nil
}

// GetVoucher fetches a voucher by id.
func (s *Store) GetVoucher(_ context.Context, id string) (models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	if !ok {
		return models.Voucher{}, storage.ErrNotFound
	}
	return v, nil
}

// ListVouchers returns the catalog ordered by point cost.
func (s *Store) ListVouchers(_ context.Context) ([]models.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Voucher, 0, len(s.vouchers))
	for _, v := range s.vouchers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PointCost != out[j].PointCost {
			return out[i].PointCost < out[j].PointCost
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ResetMonthlyPoints zeroes monthly points on every user.
func (s *Store) ResetMonthlyPoints(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(), nil
}

// ResetForPeriod records the period and sweeps, unless the period was recorded before.
func (s *Store) ResetForPeriod(_ context.Context, period models.ResetPeriod) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.periods[period.Period]; done {
		return 0, storage.ErrAlreadyExists
	}
	n := s.resetLocked()
	period.UsersReset = n
	s.periods[period.Period] = period
	return n, nil
}

func (s *Store) resetLocked() int64 {
	now := s.now().UTC()
	for id, u := range s.users {
		u.MonthlyPoints = 0
		u.UpdatedAt = now
		s.users[id] = u
	}
	return int64(len(s.users))
}
