package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// openTestStore connects to the database named by DATABASE_URL. Tests use
// unique ids so they can share a database with other runs.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("RUN_POSTGRES_INTEGRATION") != "true" {
		t.Skip("set RUN_POSTGRES_INTEGRATION=true to run this integration test")
	}
	for _, path := range []string{".env", "../.env", "../../.env", "../../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}
	s, err := NewStore(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func suffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func createUser(t *testing.T, s *Store, city string) models.User {
	t.Helper()
	name := "it_" + suffix()
	birth := time.Date(1991, 5, 17, 0, 0, 0, 0, time.UTC)
	u, err := s.CreateUser(context.Background(), models.User{
		Username:  name,
		Email:     name + "@example.com",
		Phone:     "+1555",
		City:      city,
		BirthDate: &birth,
	})
	require.NoError(t, err)
	return u
}

func TestPostgresScanAdmission(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "it-city-"+suffix())
	m, err := s.CreateMachine(ctx, models.Machine{ID: "it-rvm-" + suffix(), Name: "IT", Active: true})
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	_, err = s.AdmitScan(ctx, models.ScanAdmission{MachineID: m.ID, UserID: u.ID, Points: 5, AcceptedAt: at})
	require.NoError(t, err)

	// Stale previous timestamp.
	_, err = s.AdmitScan(ctx, models.ScanAdmission{MachineID: m.ID, UserID: u.ID, Points: 5, AcceptedAt: at.Add(time.Hour)})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.AdmitScan(ctx, models.ScanAdmission{MachineID: "missing-" + suffix(), UserID: u.ID, Points: 5, AcceptedAt: at})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.LifetimePoints)
	assert.EqualValues(t, 5, got.RedeemablePoints)
	assert.EqualValues(t, 5, got.MonthlyPoints)
	assert.Greater(t, got.Version, u.Version)

	machine, err := s.GetMachine(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, machine.LastAcceptedScanAt)
	assert.True(t, machine.LastAcceptedScanAt.Equal(at))
}

func TestPostgresConcurrentScansOneWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "")
	m, err := s.CreateMachine(ctx, models.Machine{ID: "it-rvm-" + suffix(), Name: "IT", Active: true})
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AdmitScan(ctx, models.ScanAdmission{
				MachineID:  m.ID,
				UserID:     u.ID,
				Points:     1,
				AcceptedAt: base.Add(time.Duration(i) * time.Microsecond),
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.LifetimePoints)
}

func TestPostgresSaveUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "")

	u.BankAccountRef = "PT50-IT"
	u.WalletBalance = decimal.RequireFromString("0")
	u.RedeemedVoucherIDs = []string{"v1"}
	saved, err := s.SaveUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "PT50-IT", saved.BankAccountRef)
	assert.Equal(t, []string{"v1"}, saved.RedeemedVoucherIDs)

	_, err = s.SaveUser(ctx, u)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.SaveUser(ctx, models.User{ID: "ghost-" + suffix(), Version: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresCommunitiesAndCohorts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	city := "it-city-" + suffix()
	owner := createUser(t, s, city)
	member := createUser(t, s, city)

	code := fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000)
	c, err := s.CreateCommunity(ctx, models.Community{OwnerUserID: owner.ID, Name: "IT", JoinCode: code})
	require.NoError(t, err)
	_, err = s.CreateCommunity(ctx, models.Community{OwnerUserID: owner.ID, Name: "IT2", JoinCode: code})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	require.NoError(t, s.AddMembership(ctx, member.ID, c.ID))
	require.NoError(t, s.AddMembership(ctx, member.ID, c.ID))

	members, err := s.ListCohort(ctx, models.Cohort{Kind: models.CohortCommunity, Value: c.ID})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	members, err = s.ListCohort(ctx, models.Cohort{Kind: models.CohortCity, Value: city})
	require.NoError(t, err)
	assert.Len(t, members, 2)

	members, err = s.ListCohort(ctx, models.Cohort{Kind: models.CohortBirthYear, Value: "1991"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(members), 2)

	listed, err := s.ListCommunities(ctx, []string{c.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, code, listed[0].JoinCode)
}

func TestPostgresResetForPeriod(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	period := models.ResetPeriod{Period: "it-" + suffix(), ResetAt: time.Now()}

	_, err := s.ResetForPeriod(ctx, period)
	require.NoError(t, err)
	_, err = s.ResetForPeriod(ctx, period)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestPostgresMaintenance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	m, err := s.CreateMachine(ctx, models.Machine{ID: "it-rvm-" + suffix(), Name: "IT", Active: true})
	require.NoError(t, err)
	day := time.Now().UTC().Truncate(time.Microsecond).Add(24 * time.Hour)

	_, err = s.CreateMaintenance(ctx, models.MaintenanceRecord{MachineID: m.ID, Date: day.Add(time.Hour), Notes: "later"})
	require.NoError(t, err)
	_, err = s.CreateMaintenance(ctx, models.MaintenanceRecord{MachineID: m.ID, Date: day, Notes: "sooner"})
	require.NoError(t, err)

	_, err = s.CreateMaintenance(ctx, models.MaintenanceRecord{MachineID: "missing-" + suffix(), Date: day})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recs, err := s.ListMaintenance(ctx, []string{m.ID})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "sooner", recs[0].Notes)
	assert.True(t, recs[0].Date.Equal(day))
}
