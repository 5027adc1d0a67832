package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/payout"
	"github.com/hongminglow/points-ledger/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	calls []payout.Request
}

func (f *fakeSender) Send(_ context.Context, req payout.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.err
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	clock    *fakeClock
	payouts  *fakeSender
	machines int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	store := memory.New()
	sender := &fakeSender{}
	svc := New(store, sender, Config{
		Now:    clock.Now,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &fixture{svc: svc, store: store, clock: clock, payouts: sender}
}

func (f *fixture) user(t *testing.T, name string, edit ...func(*models.User)) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", Phone: "+351900000000"}
	for _, e := range edit {
		e(&u)
	}
	created, err := f.store.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return created
}

func (f *fixture) machine(t *testing.T) models.Machine {
	t.Helper()
	f.machines++
	m, err := f.svc.RegisterMachine(context.Background(), models.Machine{
		ID:     fmt.Sprintf("machine-%d", f.machines),
		Name:   fmt.Sprintf("Machine %d", f.machines),
		Active: true,
	})
	require.NoError(t, err)
	return m
}

// credit gives userID points through a fresh machine so no cooldown applies.
func (f *fixture) credit(t *testing.T, userID string, points int64) {
	t.Helper()
	m := f.machine(t)
	_, err := f.svc.AdmitScan(context.Background(), m.ID, userID, points)
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, userID string) models.User {
	t.Helper()
	u, err := f.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u
}

func requireBalanceBounds(t *testing.T, u models.User) {
	t.Helper()
	require.GreaterOrEqual(t, u.RedeemablePoints, int64(0))
	require.LessOrEqual(t, u.RedeemablePoints, u.LifetimePoints)
	require.GreaterOrEqual(t, u.MonthlyPoints, int64(0))
	require.LessOrEqual(t, u.MonthlyPoints, u.LifetimePoints)
	require.False(t, u.WalletBalance.IsNegative())
}

func birth(year int) func(*models.User) {
	return func(u *models.User) {
		d := time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC)
		u.BirthDate = &d
	}
}
