package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tobiasagyasta/recon-api/internal/models"
)

// Directory is the in-memory view of the outlet directory. It caches the
// full outlet table (it is small and read on every ingested row) and
// refreshes it on a TTL, the same way rule lookups are cached elsewhere in
// the codebase's lineage.
type Directory struct {
	store      OutletStore
	cacheMutex sync.RWMutex
	cacheTTL   time.Duration
	lastLoaded time.Time

	byCode    map[string]*models.Outlet
	byName    map[string]*models.Outlet
	byStoreID map[models.Platform]map[string]*models.Outlet
}

// NewDirectory creates a directory backed by the given store. A non-positive
// ttl selects the default of five minutes.
func NewDirectory(store OutletStore, cacheTTL time.Duration) *Directory {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Directory{
		store:    store,
		cacheTTL: cacheTTL,
	}
}

// Load refreshes the cache from the store if the TTL has expired.
func (d *Directory) Load(ctx context.Context) error {
	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()

	if time.Since(d.lastLoaded) < d.cacheTTL && d.byCode != nil {
		return nil
	}

	outlets, err := d.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load outlet directory: %w", err)
	}

	d.byCode = make(map[string]*models.Outlet, len(outlets))
	d.byName = make(map[string]*models.Outlet, len(outlets))
	d.byStoreID = make(map[models.Platform]map[string]*models.Outlet)

	for i := range outlets {
		o := &outlets[i]
		d.byCode[o.OutletCode] = o
		d.byName[normalizeName(o.Name)] = o
		for _, p := range models.Platforms {
			id := o.StoreID(p)
			if id == "" || id == o.OutletCode {
				continue
			}
			if d.byStoreID[p] == nil {
				d.byStoreID[p] = make(map[string]*models.Outlet)
			}
			d.byStoreID[p][id] = o
		}
	}

	d.lastLoaded = time.Now()
	return nil
}

// GetByCode returns the outlet with the given business code, or nil.
func (d *Directory) GetByCode(ctx context.Context, code string) (*models.Outlet, error) {
	if err := d.Load(ctx); err != nil {
		return nil, err
	}
	d.cacheMutex.RLock()
	defer d.cacheMutex.RUnlock()
	return d.byCode[code], nil
}

// ResolveByStoreID looks up an outlet by its platform store id.
func (d *Directory) ResolveByStoreID(ctx context.Context, platform models.Platform, storeID string) (*models.Outlet, error) {
	if err := d.Load(ctx); err != nil {
		return nil, err
	}
	d.cacheMutex.RLock()
	defer d.cacheMutex.RUnlock()
	if ids := d.byStoreID[platform]; ids != nil {
		return ids[storeID], nil
	}
	return nil, nil
}

// ResolveByName looks up an outlet by case- and whitespace-insensitive name.
func (d *Directory) ResolveByName(ctx context.Context, name string) (*models.Outlet, error) {
	if err := d.Load(ctx); err != nil {
		return nil, err
	}
	d.cacheMutex.RLock()
	defer d.cacheMutex.RUnlock()
	return d.byName[normalizeName(name)], nil
}

// BackfillStoreID records a newly discovered store id for an outlet.
// Idempotent: a no-op when the id is already set.
func (d *Directory) BackfillStoreID(ctx context.Context, outletCode string, platform models.Platform, storeID string) error {
	if storeID == "" {
		return nil
	}

	outlet, err := d.GetByCode(ctx, outletCode)
	if err != nil {
		return err
	}
	if outlet == nil {
		return fmt.Errorf("unknown outlet: %s", outletCode)
	}
	if outlet.StoreID(platform) != "" {
		return nil
	}

	if err := d.store.UpdateStoreID(ctx, outletCode, platform, storeID); err != nil {
		return err
	}

	// Update the cached copy so the rest of the batch sees the id.
	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()
	switch platform {
	case models.PlatformGojek:
		outlet.GobizID = storeID
	case models.PlatformGrab:
		outlet.GrabID = storeID
	case models.PlatformShopeeFood:
		outlet.ShopeeID = storeID
	}
	if d.byStoreID[platform] == nil {
		d.byStoreID[platform] = make(map[string]*models.Outlet)
	}
	d.byStoreID[platform][storeID] = outlet
	return nil
}

// Invalidate drops the cache so the next lookup reloads from the store.
func (d *Directory) Invalidate() {
	d.cacheMutex.Lock()
	defer d.cacheMutex.Unlock()
	d.lastLoaded = time.Time{}
	d.byCode = nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
