package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// ScanResult is the outcome of an admitted scan.
type ScanResult struct {
	Accepted       bool      `json:"accepted"`
	CreditedPoints int64     `json:"creditedPoints"`
	AcceptedAt     time.Time `json:"acceptedAt"`
}

// AdmitScan credits userID with points for a scan of machineID, at most
// once per cooldown window per machine. The machine timestamp write is
// conditional on the value read, so of two racing scans only one lands;
// the loser re-reads and is rejected by the cooldown.
func (s *Service) AdmitScan(ctx context.Context, machineID, userID string, points int64) (ScanResult, error) {
	machineID, userID = strings.TrimSpace(machineID), strings.TrimSpace(userID)
	if machineID == "" || userID == "" {
		return ScanResult{}, validationf("machine id and user id are required")
	}
	if points <= 0 {
		return ScanResult{}, validationf("points must be a positive integer, got %d", points)
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		m, err := s.store.GetMachine(ctx, machineID)
		if err != nil {
			return ScanResult{}, storeErr(err, "machine "+machineID)
		}
		if !m.Active {
			return ScanResult{}, validationf("machine %s is not active", machineID)
		}

		now := s.clock()
		if m.LastAcceptedScanAt != nil {
			elapsed := now.Sub(*m.LastAcceptedScanAt)
			if elapsed < s.cooldown {
				s.log.Info("scan rejected by cooldown", "machine_id", machineID, "user_id", userID, "elapsed", elapsed)
				return ScanResult{}, &RateLimitError{MachineID: machineID, RetryAfter: s.cooldown - elapsed}
			}
		}

		credit, err := s.store.AdmitScan(ctx, models.ScanAdmission{
			CreditID:   uuid.NewString(),
			MachineID:  machineID,
			UserID:     userID,
			Points:     points,
			PrevScanAt: m.LastAcceptedScanAt,
			AcceptedAt: now,
		})
		switch {
		case err == nil:
			s.log.Info("scan admitted", "machine_id", machineID, "user_id", userID, "points", points)
			return ScanResult{Accepted: true, CreditedPoints: credit.Points, AcceptedAt: credit.AcceptedAt}, nil
		case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrAlreadyExists):
			s.log.Debug("scan lost machine race, retrying", "machine_id", machineID, "attempt", attempt)
			continue
		case errors.Is(err, storage.ErrNotFound):
			return ScanResult{}, fmt.Errorf("%w: user %s or machine %s", ErrNotFound, userID, machineID)
		default:
			return ScanResult{}, storeErr(err, "admit scan")
		}
	}
	return ScanResult{}, fmt.Errorf("%w: machine %s kept changing after %d attempts", ErrUnavailable, machineID, s.retries)
}

// ScanHistory lists the user's most recent admitted scans.
func (s *Service) ScanHistory(ctx context.Context, userID string, limit int) ([]models.ScanCredit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	scans, err := s.store.ListScans(ctx, userID, limit)
	if err != nil {
		return nil, storeErr(err, "list scans")
	}
	return scans, nil
}

// RegisterMachine adds a machine to the scan registry.
func (s *Service) RegisterMachine(ctx context.Context, m models.Machine) (models.Machine, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return models.Machine{}, validationf("machine name is required")
	}
	created, err := s.store.CreateMachine(ctx, m)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return models.Machine{}, validationf("machine %s already exists", m.ID)
	}
	if err != nil {
		return models.Machine{}, storeErr(err, "create machine")
	}
	return created, nil
}

// Machines lists registered machines that accept scans.
func (s *Service) Machines(ctx context.Context) ([]models.Machine, error) {
	machines, err := s.store.ListMachines(ctx, true)
	if err != nil {
		return nil, storeErr(err, "list machines")
	}
	return machines, nil
}
