// Package stock records quote lookups per user and aggregates them.
//
// Stocks reference their owner by user id only; HistoryWithOwner performs
// the join when the owner is needed.
package stock

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMostRequested is how many symbols MostRequested returns when asked for none.
const DefaultMostRequested = 5

// Column widths from the schema.
const (
	maxSymbolLength = 10
	maxNameLength   = 30
)

// Sentinel errors for stock operations.
var (
	// ErrInvalidDetails is returned when quote details fail validation.
	ErrInvalidDetails = errors.New("stock: invalid quote details")

	// ErrUnknownUser is returned when the owning user does not exist.
	ErrUnknownUser = errors.New("stock: unknown user")
)

// Details is a quote as returned by the upstream quote service.
type Details struct {
	Symbol   string
	Name     string
	Datetime time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   int64
}

// Validate checks column limits and price sanity.
func (d Details) Validate() error {
	var problems []string

	if d.Symbol == "" || len(d.Symbol) > maxSymbolLength {
		problems = append(problems, "symbol must be 1-10 characters")
	}
	if d.Name == "" || len(d.Name) > maxNameLength {
		problems = append(problems, "name must be 1-30 characters")
	}
	if d.Datetime.IsZero() {
		problems = append(problems, "datetime is required")
	}
	for _, p := range []decimal.Decimal{d.Open, d.High, d.Low, d.Close} {
		if p.IsNegative() {
			problems = append(problems, "prices must not be negative")
			break
		}
	}
	if d.High.LessThan(d.Low) {
		problems = append(problems, "high must not be below low")
	}
	if d.Volume < 0 {
		problems = append(problems, "volume must not be negative")
	}

	if len(problems) > 0 {
		return errors.Join(ErrInvalidDetails, errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// Stock is one recorded quote lookup.
type Stock struct {
	ID            int64           `db:"id" json:"id"`
	UUID          string          `db:"uuid" json:"uuid"`
	Symbol        string          `db:"symbol" json:"symbol"`
	Name          string          `db:"name" json:"name"`
	StockDatetime time.Time       `db:"stock_datetime" json:"date"`
	Open          decimal.Decimal `db:"open" json:"open"`
	High          decimal.Decimal `db:"high" json:"high"`
	Low           decimal.Decimal `db:"low" json:"low"`
	Close         decimal.Decimal `db:"close" json:"close"`
	Volume        int64           `db:"volume" json:"volume"`
	UserID        int64           `db:"user_id" json:"user_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OwnedStock is a stock joined with its owner's username.
type OwnedStock struct {
	Stock
	Username string `db:"username" json:"username"`
}

// Stat is the request count for one symbol.
type Stat struct {
	Stock          string `db:"stock" json:"stock"`
	TimesRequested int64  `db:"times_requested" json:"times_requested"`
}
