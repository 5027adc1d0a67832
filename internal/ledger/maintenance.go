package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/hongminglow/points-ledger/internal/models"
)

// MaintenanceSoon is how far ahead a visit counts as due on the machine list.
const MaintenanceSoon = 72 * time.Hour

// MachineMaintenance is an active machine with its upcoming visits, earliest first.
type MachineMaintenance struct {
	Machine  models.Machine             `json:"machine"`
	Upcoming []models.MaintenanceRecord `json:"upcoming"`
	// Due is the earliest upcoming visit within MaintenanceSoon, if any.
	Due *models.MaintenanceRecord `json:"due,omitempty"`
}

// LogMaintenance schedules a service visit for machineID.
func (s *Service) LogMaintenance(ctx context.Context, machineID string, date time.Time, notes string) (models.MaintenanceRecord, error) {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return models.MaintenanceRecord{}, validationf("machine id is required")
	}
	if date.IsZero() {
		return models.MaintenanceRecord{}, validationf("maintenance date is required")
	}
	rec, err := s.store.CreateMaintenance(ctx, models.MaintenanceRecord{
		MachineID: machineID,
		Date:      date.UTC(),
		Notes:     strings.TrimSpace(notes),
	})
	if err != nil {
		return models.MaintenanceRecord{}, storeErr(err, "machine "+machineID)
	}
	s.log.Info("maintenance logged", "machine_id", machineID, "date", rec.Date)
	return rec, nil
}

// MaintenanceLog lists every active machine with the visits dated now or later.
func (s *Service) MaintenanceLog(ctx context.Context) ([]MachineMaintenance, error) {
	machines, err := s.store.ListMachines(ctx, true)
	if err != nil {
		return nil, storeErr(err, "list machines")
	}
	ids := make([]string, 0, len(machines))
	for _, m := range machines {
		ids = append(ids, m.ID)
	}
	records, err := s.store.ListMaintenance(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "list maintenance")
	}

	now := s.clock()
	byMachine := make(map[string][]models.MaintenanceRecord, len(machines))
	for _, r := range records {
		if r.Date.Before(now) {
			continue
		}
		byMachine[r.MachineID] = append(byMachine[r.MachineID], r)
	}

	out := make([]MachineMaintenance, 0, len(machines))
	for _, m := range machines {
		entry := MachineMaintenance{Machine: m, Upcoming: byMachine[m.ID]}
		if entry.Upcoming == nil {
			entry.Upcoming = []models.MaintenanceRecord{}
		}
		if len(entry.Upcoming) > 0 && !entry.Upcoming[0].Date.After(now.Add(MaintenanceSoon)) {
			due := entry.Upcoming[0]
			entry.Due = &due
		}
		out = append(out, entry)
	}
	return out, nil
}
