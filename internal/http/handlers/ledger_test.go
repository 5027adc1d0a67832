package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/points-ledger/internal/ledger"
	"github.com/hongminglow/points-ledger/internal/middleware"
	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/payout"
	"github.com/hongminglow/points-ledger/internal/storage/memory"
)

const testUserHeader = "X-Test-User"

type testEnv struct {
	router http.Handler
	store  *memory.Store
	svc    *ledger.Service
	now    time.Time
}

type stubSender struct{ err error }

func (s stubSender) Send(context.Context, payout.Request) error { return s.err }

func newTestEnv(t *testing.T, sender payout.Sender) *testEnv {
	t.Helper()
	env := &testEnv{store: memory.New(), now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.svc = ledger.New(env.store, sender, ledger.Config{
		Now:    func() time.Time { return env.now },
		Logger: logger,
	})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if id := req.Header.Get(testUserHeader); id != "" {
					req = req.WithContext(middleware.WithUserID(req.Context(), id))
				}
				next.ServeHTTP(w, req)
			})
		})
		NewLedgerHandler(env.svc, logger).Register(r)
	})
	r.Route("/admin", NewAdminHandler(env.svc, logger).Register)
	env.router = r
	return env
}

func (e *testEnv) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := e.store.CreateUser(context.Background(), models.User{
		Username: name,
		Email:    name + "@example.com",
		Phone:    "+15550000",
		City:     "Porto",
	})
	require.NoError(t, err)
	return u
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestScanRouteCooldown(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.user(t, "alice")

	rec, _ := env.do(t, http.MethodPost, "/admin/machines", "", map[string]any{"id": "rvm-1", "name": "Lobby"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/scans", u.ID, map[string]any{"machineId": "rvm-1", "points": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	var scan struct {
		Accepted       bool  `json:"accepted"`
		CreditedPoints int64 `json:"creditedPoints"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &scan))
	assert.True(t, scan.Accepted)
	assert.EqualValues(t, 3, scan.CreditedPoints)

	env.now = env.now.Add(time.Minute)
	rec, _ = env.do(t, http.MethodPost, "/scans", u.ID, map[string]any{"machineId": "rvm-1", "points": 3})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "240", rec.Header().Get("Retry-After"))

	rec, _ = env.do(t, http.MethodPost, "/scans", u.ID, map[string]any{"machineId": "rvm-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/scans", u.ID, map[string]any{"machineId": "ghost", "points": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/scans", "", map[string]any{"machineId": "rvm-1", "points": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRedeemAndWalletRoutes(t *testing.T) {
	env := newTestEnv(t, stubSender{err: errors.New("bank offline")})
	u := env.user(t, "bob")
	ctx := context.Background()
	_, err := env.svc.RegisterMachine(ctx, models.Machine{ID: "rvm-1", Name: "Lobby", Active: true})
	require.NoError(t, err)
	_, err = env.svc.AdmitScan(ctx, "rvm-1", u.ID, 30)
	require.NoError(t, err)

	rec, _ := env.do(t, http.MethodPost, "/admin/vouchers", "", map[string]any{"id": "coffee", "title": "Coffee", "pointCost": 20})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Omitted cost falls back to the catalog price.
	rec, _ = env.do(t, http.MethodPost, "/vouchers/coffee/redeem", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/vouchers/coffee/redeem", u.ID, map[string]any{"cost": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/vouchers/nope/redeem", u.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := env.do(t, http.MethodPost, "/wallet/convert", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		RedeemablePoints int64  `json:"redeemablePoints"`
		WalletBalance    string `json:"walletBalance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	assert.Zero(t, wallet.RedeemablePoints)
	assert.Equal(t, "1", wallet.WalletBalance)

	rec, _ = env.do(t, http.MethodPost, "/wallet/payout", u.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no bank account yet")

	rec, _ = env.do(t, http.MethodPut, "/wallet/bank-account", u.ID, map[string]any{"accountRef": "PT50-0001"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/wallet/payout", u.ID, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/me/vouchers", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.Voucher
	require.NoError(t, json.Unmarshal(resp.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "coffee", mine[0].ID)
}

func TestPayoutInsufficientBalance(t *testing.T) {
	env := newTestEnv(t, stubSender{})
	u := env.user(t, "carol")
	rec, _ := env.do(t, http.MethodPut, "/wallet/bank-account", u.ID, map[string]any{"accountRef": "PT50-0002"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/wallet/payout", u.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCommunityAndRankRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	owner := env.user(t, "dora")
	joiner := env.user(t, "eli")

	rec, resp := env.do(t, http.MethodPost, "/communities", owner.ID, map[string]any{"name": "Green Street"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var c models.Community
	require.NoError(t, json.Unmarshal(resp.Data, &c))
	require.Len(t, c.JoinCode, 6)

	rec, _ = env.do(t, http.MethodPost, "/communities/join", joiner.ID, map[string]any{"code": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/communities/join", joiner.ID, map[string]any{"code": c.JoinCode})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/communities", joiner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.Community
	require.NoError(t, json.Unmarshal(resp.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	rec, resp = env.do(t, http.MethodGet, fmt.Sprintf("/leaderboard?kind=community&value=%s", c.ID), joiner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var board []struct {
		Rank int `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &board))
	assert.Len(t, board, 2)

	rec, resp = env.do(t, http.MethodGet, "/rank?kind=city&value=Porto", joiner.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rank struct {
		Rank int `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &rank))
	assert.Equal(t, 1, rank.Rank)

	rec, _ = env.do(t, http.MethodGet, "/rank?kind=galaxy&value=x", joiner.ID, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/me/ranks", joiner.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminMonthlyReset(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.user(t, "fay")
	ctx := context.Background()
	_, err := env.svc.RegisterMachine(ctx, models.Machine{ID: "rvm-1", Name: "Lobby", Active: true})
	require.NoError(t, err)
	_, err = env.svc.AdmitScan(ctx, "rvm-1", u.ID, 7)
	require.NoError(t, err)

	rec, resp := env.do(t, http.MethodPost, "/admin/monthly-reset", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		UsersReset int64 `json:"usersReset"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.EqualValues(t, 1, out.UsersReset)

	rec, resp = env.do(t, http.MethodGet, "/me", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &profile))
	assert.Zero(t, profile.User.MonthlyPoints)
	assert.EqualValues(t, 7, profile.User.LifetimePoints)
}

func TestMaintenanceRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.user(t, "gus")
	_, err := env.svc.RegisterMachine(context.Background(), models.Machine{ID: "rvm-1", Name: "Lobby", Active: true})
	require.NoError(t, err)

	visit := env.now.Add(24 * time.Hour)
	rec, _ := env.do(t, http.MethodPost, "/admin/machines/rvm-1/maintenance", "", map[string]any{"date": visit, "notes": "belt check"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/admin/machines/rvm-1/maintenance", "", map[string]any{"notes": "no date"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/admin/machines/missing/maintenance", "", map[string]any{"date": visit})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := env.do(t, http.MethodGet, "/machines/maintenance", u.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var log []struct {
		Machine  models.Machine             `json:"machine"`
		Upcoming []models.MaintenanceRecord `json:"upcoming"`
		Due      *models.MaintenanceRecord  `json:"due"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &log))
	require.Len(t, log, 1)
	assert.Equal(t, "rvm-1", log[0].Machine.ID)
	require.Len(t, log[0].Upcoming, 1)
	assert.Equal(t, "belt check", log[0].Upcoming[0].Notes)
	assert.True(t, log[0].Upcoming[0].Date.Equal(visit))
	require.NotNil(t, log[0].Due)
}

func TestAdminReleasePayoutHold(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.user(t, "hal")
	ctx := context.Background()

	stuck, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	stuck.PayoutPending = true
	_, err = env.store.SaveUser(ctx, stuck)
	require.NoError(t, err)

	rec, resp := env.do(t, http.MethodDelete, "/admin/users/"+u.ID+"/payout-hold", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		PayoutPending bool `json:"payoutPending"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	assert.False(t, wallet.PayoutPending)

	got, err := env.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.PayoutPending)

	rec, _ = env.do(t, http.MethodDelete, "/admin/users/ghost/payout-hold", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteErrorMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: x", ledger.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", ledger.ErrNotFound), http.StatusNotFound},
		{&ledger.RateLimitError{MachineID: "m", RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{fmt.Errorf("%w: x", ledger.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: x", ledger.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: x", ledger.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, logger, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	writeError(rec, logger, &ledger.RateLimitError{MachineID: "m", RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}
