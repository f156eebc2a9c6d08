package models

import "fmt"

// Platform identifies the source of a sales/settlement report.
type Platform string

const (
	PlatformGojek      Platform = "gojek"
	PlatformGrab       Platform = "grab"
	PlatformShopeeFood Platform = "shopeefood"
	PlatformVoucher    Platform = "voucher"
	PlatformWebshop    Platform = "webshop"
)

// Platforms lists every supported report type in a stable order.
var Platforms = []Platform{
	PlatformGojek,
	PlatformGrab,
	PlatformShopeeFood,
	PlatformVoucher,
	PlatformWebshop,
}

// ParsePlatform validates a platform string from the HTTP boundary.
func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform: %s", s)
}

func (p Platform) String() string {
	return string(p)
}
