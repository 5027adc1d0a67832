package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/points-ledger/internal/http/respond"
	"github.com/hongminglow/points-ledger/internal/ledger"
	"github.com/hongminglow/points-ledger/internal/middleware"
	"github.com/hongminglow/points-ledger/internal/models/dto"
)

// LedgerHandler exposes the authenticated user's ledger operations. Every
// route expects the Auth middleware to have placed the user id on the context.
type LedgerHandler struct {
	svc *ledger.Service
	log *slog.Logger
}

// NewLedgerHandler constructs the handler.
func NewLedgerHandler(svc *ledger.Service, logger *slog.Logger) *LedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandler{svc: svc, log: logger}
}

// Register attaches the ledger routes.
func (h *LedgerHandler) Register(r chi.Router) {
	r.Get("/me", h.withUser(h.profile))
	r.Get("/me/ranks", h.withUser(h.rankSummary))
	r.Get("/me/scans", h.withUser(h.scanHistory))
	r.Get("/me/vouchers", h.withUser(h.myVouchers))

	r.Post("/scans", h.withUser(h.scan))
	r.Get("/machines", h.machines)
	r.Get("/machines/maintenance", h.maintenanceLog)

	r.Get("/rank", h.withUser(h.rank))
	r.Get("/leaderboard", h.leaderboard)

	r.Get("/vouchers", h.vouchers)
	r.Post("/vouchers/{voucherID}/redeem", h.withUser(h.redeem))

	r.Route("/wallet", func(r chi.Router) {
		r.Post("/convert", h.withUser(h.convert))
		r.Put("/bank-account", h.withUser(h.setBankAccount))
		r.Post("/payout", h.withUser(h.payout))
	})

	r.Route("/communities", func(r chi.Router) {
		r.Get("/", h.withUser(h.communities))
		r.Post("/", h.withUser(h.createCommunity))
		r.Post("/join", h.withUser(h.joinCommunity))
	})
}

type userHandlerFunc func(w http.ResponseWriter, r *http.Request, userID string)

func (h *LedgerHandler) withUser(fn userHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFrom(r.Context())
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		fn(w, r, userID)
	}
}

func (h *LedgerHandler) profile(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.svc.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", p)
}

func (h *LedgerHandler) rankSummary(w http.ResponseWriter, r *http.Request, userID string) {
	ranks, err := h.svc.RankSummary(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", ranks)
}

func (h *LedgerHandler) scanHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scans, err := h.svc.ScanHistory(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", scans)
}

func (h *LedgerHandler) myVouchers(w http.ResponseWriter, r *http.Request, userID string) {
	vs, err := h.svc.MyVouchers(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", vs)
}

func (h *LedgerHandler) scan(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.ScanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Points == nil {
		respond.Error(w, http.StatusBadRequest, "points is required")
		return
	}
	res, err := h.svc.AdmitScan(r.Context(), req.MachineID, userID, *req.Points)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "scan accepted", dto.ScanResponse{
		Accepted:       res.Accepted,
		CreditedPoints: res.CreditedPoints,
		AcceptedAt:     res.AcceptedAt,
	})
}

func (h *LedgerHandler) machines(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Machines(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", ms)
}

func (h *LedgerHandler) maintenanceLog(w http.ResponseWriter, r *http.Request) {
	log, err := h.svc.MaintenanceLog(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", log)
}

func (h *LedgerHandler) rank(w http.ResponseWriter, r *http.Request, userID string) {
	cohort, err := ledger.ParseCohort(r.URL.Query().Get("kind"), r.URL.Query().Get("value"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	rank, err := h.svc.Rank(r.Context(), userID, cohort)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.RankResponse{Cohort: cohort, Rank: rank})
}

func (h *LedgerHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	cohort, err := ledger.ParseCohort(r.URL.Query().Get("kind"), r.URL.Query().Get("value"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	entries, err := h.svc.Leaderboard(r.Context(), cohort)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", entries)
}

func (h *LedgerHandler) vouchers(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.Vouchers(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", vs)
}

func (h *LedgerHandler) redeem(w http.ResponseWriter, r *http.Request, userID string) {
	voucherID := chi.URLParam(r, "voucherID")
	var req dto.RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	cost := req.Cost
	if cost == 0 {
		v, err := h.svc.Voucher(r.Context(), voucherID)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		cost = v.PointCost
	}
	u, err := h.svc.RedeemVoucher(r.Context(), userID, voucherID, cost)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "voucher redeemed", u)
}

func (h *LedgerHandler) convert(w http.ResponseWriter, r *http.Request, userID string) {
	u, err := h.svc.ConvertPointsToCash(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "points converted", dto.WalletResponse{
		RedeemablePoints: u.RedeemablePoints,
		WalletBalance:    u.WalletBalance,
		BankAccountRef:   u.BankAccountRef,
	})
}

func (h *LedgerHandler) setBankAccount(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.BankAccountRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.SetBankAccount(r.Context(), userID, req.AccountRef)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "bank account updated", dto.WalletResponse{
		RedeemablePoints: u.RedeemablePoints,
		WalletBalance:    u.WalletBalance,
		BankAccountRef:   u.BankAccountRef,
	})
}

func (h *LedgerHandler) payout(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.svc.SendCashToBank(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "payout sent", dto.PayoutResponse{
		Amount:        res.Amount,
		WalletBalance: res.User.WalletBalance,
	})
}

func (h *LedgerHandler) communities(w http.ResponseWriter, r *http.Request, userID string) {
	cs, err := h.svc.Communities(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", cs)
}

func (h *LedgerHandler) createCommunity(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.CreateCommunityRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCommunity(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "community created", c)
}

func (h *LedgerHandler) joinCommunity(w http.ResponseWriter, r *http.Request, userID string) {
	var req dto.JoinCommunityRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.JoinCommunityByCode(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "joined community", c)
}
