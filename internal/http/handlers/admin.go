package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/points-ledger/internal/http/respond"
	"github.com/hongminglow/points-ledger/internal/ledger"
	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/models/dto"
)

// AdminHandler exposes operator routes for the machine registry and its
// maintenance log, the voucher catalog, payout holds and the monthly reset.
type AdminHandler struct {
	svc *ledger.Service
	log *slog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(svc *ledger.Service, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{svc: svc, log: logger}
}

// Register attaches the admin routes; the caller mounts them behind AdminKey.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/machines", h.createMachine)
	r.Post("/machines/{machineID}/maintenance", h.logMaintenance)
	r.Delete("/users/{userID}/payout-hold", h.releasePayoutHold)
	r.Post("/vouchers", h.createVoucher)
	r.Post("/monthly-reset", h.monthlyReset)
}

func (h *AdminHandler) createMachine(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMachineRequest
	if !decode(w, r, &req) {
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	m, err := h.svc.RegisterMachine(r.Context(), models.Machine{ID: req.ID, Name: req.Name, Active: active})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "machine registered", m)
}

func (h *AdminHandler) logMaintenance(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateMaintenanceRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.svc.LogMaintenance(r.Context(), chi.URLParam(r, "machineID"), req.Date, req.Notes)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "maintenance logged", rec)
}

func (h *AdminHandler) releasePayoutHold(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.ReleasePayoutHold(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "payout hold released", dto.WalletResponse{
		RedeemablePoints: u.RedeemablePoints,
		WalletBalance:    u.WalletBalance,
		BankAccountRef:   u.BankAccountRef,
		PayoutPending:    u.PayoutPending,
	})
}

func (h *AdminHandler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateVoucherRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.svc.AddVoucher(r.Context(), models.Voucher{
		ID:        req.ID,
		Title:     req.Title,
		PointCost: req.PointCost,
		Expiry:    req.Expiry,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "voucher created", v)
}

func (h *AdminHandler) monthlyReset(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ResetMonthlyPoints(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "monthly points reset", dto.ResetResponse{UsersReset: n})
}
