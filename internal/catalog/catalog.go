// Package catalog seeds the machine registry and voucher catalog from a
// YAML file at startup.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hongminglow/points-ledger/internal/models"
	"github.com/hongminglow/points-ledger/internal/storage"
)

// Machine is a seeded scan machine.
type Machine struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Active *bool  `yaml:"active"`
}

// Voucher is a seeded catalog voucher.
type Voucher struct {
	ID        string     `yaml:"id"`
	Title     string     `yaml:"title"`
	PointCost int64      `yaml:"pointCost"`
	Expiry    *time.Time `yaml:"expiry"`
	PromoCode string     `yaml:"promoCode"`
}

// Catalog is a parsed seed file.
type Catalog struct {
	Machines []Machine `yaml:"machines"`
	Vouchers []Voucher `yaml:"vouchers"`
}

// Seeder is the slice of the ledger store Apply writes through.
type Seeder interface {
	CreateMachine(ctx context.Context, machine models.Machine) (models.Machine, error)
	CreateVoucher(ctx context.Context, voucher models.Voucher) (models.Voucher, error)
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	seen := make(map[string]bool)
	for i, m := range c.Machines {
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("machine %d: id and name are required", i)
		}
		if seen["m:"+m.ID] {
			return nil, fmt.Errorf("machine %q listed twice", m.ID)
		}
		seen["m:"+m.ID] = true
	}
	for i, v := range c.Vouchers {
		if v.ID == "" || v.Title == "" {
			return nil, fmt.Errorf("voucher %d: id and title are required", i)
		}
		if v.PointCost <= 0 {
			return nil, fmt.Errorf("voucher %q: pointCost must be positive", v.ID)
		}
		if seen["v:"+v.ID] {
			return nil, fmt.Errorf("voucher %q listed twice", v.ID)
		}
		seen["v:"+v.ID] = true
	}
	return &c, nil
}

// Apply inserts every catalog entry. Entries that already exist are left
// as they are, so Apply can run on every startup.
func Apply(ctx context.Context, store Seeder, c *Catalog) (created int, err error) {
	for _, m := range c.Machines {
		active := true
		if m.Active != nil {
			active = *m.Active
		}
		_, err := store.CreateMachine(ctx, models.Machine{ID: m.ID, Name: m.Name, Active: active})
		switch {
		case err == nil:
			created++
		case errors.Is(err, storage.ErrAlreadyExists):
		default:
			return created, fmt.Errorf("seed machine %s: %w", m.ID, err)
		}
	}
	for _, v := range c.Vouchers {
		_, err := store.CreateVoucher(ctx, models.Voucher{
			ID:        v.ID,
			Title:     v.Title,
			PointCost: v.PointCost,
			Expiry:    v.Expiry,
			PromoCode: v.PromoCode,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, storage.ErrAlreadyExists):
		default:
			return created, fmt.Errorf("seed voucher %s: %w", v.ID, err)
		}
	}
	return created, nil
}
