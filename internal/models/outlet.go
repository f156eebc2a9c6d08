package models

// Outlet maps a stable business code to per-platform merchant/store
// identifiers. The core only reads from the directory, except for the
// narrowly-scoped store-id backfill described by the normalizer.
type Outlet struct {
	OutletCode string `json:"outlet_code"`
	Name       string `json:"name"`
	GobizID    string `json:"gobiz_id"`
	GrabID     string `json:"grab_id"`
	ShopeeID   string `json:"shopee_id"`
}

// StoreID returns the outlet's merchant identifier for the given platform.
// Platforms without a per-outlet store account return the outlet code itself.
func (o *Outlet) StoreID(p Platform) string {
	switch p {
	case PlatformGojek:
		return o.GobizID
	case PlatformGrab:
		return o.GrabID
	case PlatformShopeeFood:
		return o.ShopeeID
	default:
		return o.OutletCode
	}
}
