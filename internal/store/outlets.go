package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tobiasagyasta/recon-api/internal/models"
)

// OutletStore is the pgx-backed implementation of services.OutletStore.
type OutletStore struct {
	pool *pgxpool.Pool
}

func NewOutletStore(pool *pgxpool.Pool) *OutletStore {
	return &OutletStore{pool: pool}
}

func (s *OutletStore) ListAll(ctx context.Context) ([]models.Outlet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outlet_code, name, gobiz_id, grab_id, shopee_id FROM outlets ORDER BY outlet_code`)
	if err != nil {
		return nil, fmt.Errorf("list outlets: %w", err)
	}
	defer rows.Close()

	var outlets []models.Outlet
	for rows.Next() {
		var o models.Outlet
		if err := rows.Scan(&o.OutletCode, &o.Name, &o.GobizID, &o.GrabID, &o.ShopeeID); err != nil {
			return nil, err
		}
		outlets = append(outlets, o)
	}
	return outlets, rows.Err()
}

// UpdateStoreID records a discovered store id. The WHERE guard keeps the
// write idempotent: an id already on file is never overwritten.
func (s *OutletStore) UpdateStoreID(ctx context.Context, outletCode string, platform models.Platform, storeID string) error {
	var column string
	switch platform {
	case models.PlatformGojek:
		column = "gobiz_id"
	case models.PlatformGrab:
		column = "grab_id"
	case models.PlatformShopeeFood:
		column = "shopee_id"
	default:
		return fmt.Errorf("platform %s has no store id column", platform)
	}

	query := fmt.Sprintf(
		`UPDATE outlets SET %s = $2 WHERE outlet_code = $1 AND (%s IS NULL OR %s = '')`,
		column, column, column)
	_, err := s.pool.Exec(ctx, query, outletCode, storeID)
	return err
}
