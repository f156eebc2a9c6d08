// Package store contains the pgx-backed implementations of the persistence
// interfaces declared in internal/services.
package store

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericParam converts a decimal into the pgtype value COPY needs for
// numeric columns. Plain Exec/Query paths pass d.String() with a ::numeric
// cast instead.
func numericParam(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
