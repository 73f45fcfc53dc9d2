package pricing

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/costwatch/costwatch/internal/models"
	"github.com/costwatch/costwatch/pkg/logger"
)

var (
	// ErrPricingNotFound means no table covers the requested instant.
	ErrPricingNotFound = errors.New("no active pricing table found")
	// ErrPricingConflict means a new table would overlap an existing window.
	ErrPricingConflict = errors.New("pricing table overlaps an existing window")
	// ErrCatalogIntegrity means two tables share the same effective_from.
	ErrCatalogIntegrity = errors.New("pricing catalog integrity violation")
)

type catalogKey struct {
	provider string
	model    string
	region   string
}

// snapshot is an immutable view of the catalog. Readers load it through an
// atomic pointer; writers build a replacement and swap it in.
type snapshot struct {
	tables map[catalogKey][]models.PricingTable // sorted by EffectiveFrom asc
}

// Catalog resolves the active pricing table for a (provider, model, region)
// triple at a point in time. Copy-on-write: lookups never block writers.
type Catalog struct {
	db   *gorm.DB
	snap atomic.Pointer[snapshot]
}

func NewCatalog(db *gorm.DB) (*Catalog, error) {
	c := &Catalog{db: db}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the in-memory snapshot from the database.
func (c *Catalog) Reload() error {
	var rows []models.PricingTable
	if err := c.db.Order("effective_from asc").Find(&rows).Error; err != nil {
		return fmt.Errorf("load pricing tables: %w", err)
	}

	snap := &snapshot{tables: make(map[catalogKey][]models.PricingTable)}
	for _, row := range rows {
		key := catalogKey{row.Provider, row.Model, row.Region}
		snap.tables[key] = append(snap.tables[key], row)
	}
	c.snap.Store(snap)
	return nil
}

// Resolve returns the unique table active at ts. Among candidates whose
// window covers ts, the one with the greatest effective_from wins; two
// candidates with identical effective_from are an integrity violation and
// reported rather than silently resolved.
func (c *Catalog) Resolve(provider, model string, ts time.Time, region string) (*models.PricingTable, error) {
	snap := c.snap.Load()
	candidates := snap.tables[catalogKey{provider, model, region}]
	if len(candidates) == 0 && region != "" {
		// Region-specific pricing falls back to the global entry.
		candidates = snap.tables[catalogKey{provider, model, ""}]
	}

	var best *models.PricingTable
	duplicate := false
	for i := range candidates {
		t := &candidates[i]
		if !t.IsActiveAt(ts) {
			continue
		}
		switch {
		case best == nil:
			best = t
		case t.EffectiveFrom.Equal(best.EffectiveFrom):
			duplicate = true
		case t.EffectiveFrom.After(best.EffectiveFrom):
			best = t
			duplicate = false
		}
	}

	if duplicate {
		logger.Error().
			Str("provider", provider).
			Str("model", model).
			Time("effective_from", best.EffectiveFrom).
			Msg("duplicate effective_from in pricing catalog")
		return nil, ErrCatalogIntegrity
	}
	if best == nil {
		return nil, fmt.Errorf("%w: provider=%s model=%s at=%s",
			ErrPricingNotFound, provider, model, ts.UTC().Format(time.RFC3339))
	}
	return best, nil
}

// Add validates and persists a new table, then refreshes the snapshot.
// If the immediate predecessor is open-ended, its window is closed at the
// new table's effective_from; any other overlap is a conflict.
func (c *Catalog) Add(table *models.PricingTable) error {
	if table.Provider == "" || table.Model == "" {
		return errors.New("provider and model are required")
	}
	if err := table.Structure.Validate(); err != nil {
		return err
	}
	if table.ID == uuid.Nil {
		table.ID = uuid.New()
	}
	if table.Currency == "" {
		table.Currency = "USD"
	}

	var existing []models.PricingTable
	err := c.db.
		Where("provider = ? AND model = ? AND region = ?", table.Provider, table.Model, table.Region).
		Order("effective_from asc").
		Find(&existing).Error
	if err != nil {
		return err
	}

	var closePredecessor *models.PricingTable
	for i := range existing {
		prev := &existing[i]
		if prev.EffectiveFrom.Equal(table.EffectiveFrom) {
			return fmt.Errorf("%w: duplicate effective_from", ErrPricingConflict)
		}
		if !prev.Overlaps(table) {
			continue
		}
		// An open-ended predecessor is closed at the newcomer's start;
		// everything else is a hard conflict.
		if prev.EffectiveUntil == nil && prev.EffectiveFrom.Before(table.EffectiveFrom) {
			closePredecessor = prev
			continue
		}
		return fmt.Errorf("%w: provider=%s model=%s", ErrPricingConflict, table.Provider, table.Model)
	}

	err = c.db.Transaction(func(tx *gorm.DB) error {
		if closePredecessor != nil {
			from := table.EffectiveFrom
			if err := tx.Model(&models.PricingTable{}).
				Where("id = ?", closePredecessor.ID).
				Update("effective_until", from).Error; err != nil {
				return err
			}
		}
		return tx.Create(table).Error
	})
	if err != nil {
		return err
	}

	return c.Reload()
}

// List returns all tables, optionally filtered by provider and model.
func (c *Catalog) List(provider, model string) []models.PricingTable {
	snap := c.snap.Load()
	var out []models.PricingTable
	for key, tables := range snap.tables {
		if provider != "" && key.provider != provider {
			continue
		}
		if model != "" && key.model != model {
			continue
		}
		out = append(out, tables...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
	})
	return out
}
