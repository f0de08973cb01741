// Package fx derives daily USD to EUR rates from card purchases.
package fx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/date"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Fallback selects the rate used for a date without purchases.
type Fallback int

const (
	// Preceding uses the latest day on or before the date, or the earliest
	// day after it if no such day exists.
	Preceding Fallback = iota
	// Nearest uses the closest day on either side. Ties go to the earlier day.
	Nearest
)

func (f Fallback) String() string {
	switch f {
	case Preceding:
		return "preceding"
	case Nearest:
		return "nearest"
	}
	return fmt.Sprintf("fallback(%d)", int(f))
}

// ParseFallback parses a fallback policy name.
func ParseFallback(s string) (Fallback, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preceding":
		return Preceding, nil
	case "nearest":
		return Nearest, nil
	}
	return 0, fmt.Errorf("invalid FX fallback %q, expected preceding or nearest", s)
}

// NoRateAvailable is returned when no card purchase exists to derive a rate.
type NoRateAvailable struct {
	Date time.Time
}

func (e *NoRateAvailable) Error() string {
	return fmt.Sprintf("no USD/EUR rate available for %s: no card purchases in input", e.Date.Format("2006-01-02"))
}

// Observation is one card purchase, the EUR paid out for a USD amount.
type Observation struct {
	Time time.Time
	EUR  decimal.Decimal
	USD  decimal.Decimal
}

// Table holds one rate per calendar day. It is immutable once built.
type Table struct {
	fallback Fallback
	rates    map[time.Time]decimal.Decimal
	days     []time.Time
}

// Build creates a table from the card purchases among the given
// transactions. Other kinds are ignored.
func Build(trx []*transaction.Transaction, fallback Fallback) *Table {
	var obs []Observation
	for _, t := range trx {
		if t.Kind != transaction.CardPurchase {
			continue
		}
		obs = append(obs, Observation{
			Time: t.Time,
			USD:  t.InputQuantity,
			EUR:  t.OutputQuantity,
		})
	}
	return FromObservations(obs, fallback)
}

// FromObservations creates a table. Multiple observations on the same day
// are combined as total EUR over total USD.
func FromObservations(obs []Observation, fallback Fallback) *Table {
	type total struct{ eur, usd decimal.Decimal }
	totals := make(map[time.Time]total)
	for _, o := range obs {
		d := date.Day(o.Time)
		t := totals[d]
		totals[d] = total{t.eur.Add(o.EUR), t.usd.Add(o.USD)}
	}
	tbl := &Table{
		fallback: fallback,
		rates:    make(map[time.Time]decimal.Decimal, len(totals)),
	}
	for d, t := range totals {
		if t.usd.IsZero() {
			continue
		}
		tbl.rates[d] = t.eur.Div(t.usd)
		tbl.days = append(tbl.days, d)
	}
	compare.Sort(tbl.days, compare.Time)
	return tbl
}

// Len returns the number of days with a rate.
func (t *Table) Len() int {
	return len(t.days)
}

// Days returns the days with a rate in ascending order.
func (t *Table) Days() []time.Time {
	res := make([]time.Time, len(t.days))
	copy(res, t.days)
	return res
}

// Lookup returns the rate for the day of ts.
func (t *Table) Lookup(ts time.Time) (decimal.Decimal, error) {
	d := date.Day(ts)
	if len(t.days) == 0 {
		return decimal.Zero, &NoRateAvailable{Date: d}
	}
	if r, ok := t.rates[d]; ok {
		return r, nil
	}
	// index of the first day after d
	idx := sort.Search(len(t.days), func(i int) bool {
		return t.days[i].After(d)
	})
	if idx == 0 {
		return t.rates[t.days[0]], nil
	}
	before := t.days[idx-1]
	if idx == len(t.days) || t.fallback == Preceding {
		return t.rates[before], nil
	}
	after := t.days[idx]
	if date.DaysBetween(before, d) <= date.DaysBetween(d, after) {
		return t.rates[before], nil
	}
	return t.rates[after], nil
}

// Convert converts a USD amount to EUR at the rate for the day of ts.
func (t *Table) Convert(usd decimal.Decimal, ts time.Time) (decimal.Decimal, error) {
	r, err := t.Lookup(ts)
	if err != nil {
		return decimal.Zero, err
	}
	return usd.Mul(r), nil
}
