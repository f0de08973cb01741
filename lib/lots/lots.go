// Copyright 2021 Silvio Böhler
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lots implements a FIFO ledger of acquisition lots per asset.
package lots

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/dict"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Lot is a quantity of an asset acquired in one transaction.
type Lot struct {
	Asset     string
	Time      time.Time
	TxID      string
	Source    transaction.Kind
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	Cost      decimal.Decimal

	// attributed is the cost already assigned to consumed quantity.
	attributed decimal.Decimal
}

// CostPerUnit returns the EUR cost of one unit.
func (l *Lot) CostPerUnit() decimal.Decimal {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.Cost.Div(l.Quantity)
}

// Exhausted returns whether nothing remains of the lot.
func (l *Lot) Exhausted() bool {
	return !l.Remaining.IsPositive()
}

func (l *Lot) String() string {
	return fmt.Sprintf("%s %s %s/%s %s EUR (%s)", l.Time.Format("2006-01-02"), l.Asset, l.Remaining, l.Quantity, l.Cost.StringFixed(2), l.TxID)
}

// Use records the consumption of part of a lot.
type Use struct {
	TxID     string
	Time     time.Time
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// Consumption is the result of consuming a quantity of an asset.
type Consumption struct {
	Cost decimal.Decimal
	Uses []Use
}

// InsufficientLots is returned when a disposal exceeds the quantity held.
type InsufficientLots struct {
	Asset     string
	Time      time.Time
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLots) Error() string {
	return fmt.Sprintf("insufficient %s lots at %s: requested %s, available %s",
		e.Asset, e.Time.Format("2006-01-02 15:04:05"), e.Requested, e.Available)
}

// Ledger owns all lots of a run.
type Ledger struct {
	lots map[string][]*Lot
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{lots: make(map[string][]*Lot)}
}

// Acquire adds a lot. Lots of an asset are kept in ascending time order;
// lots with equal times keep their insertion order.
func (l *Ledger) Acquire(asset string, t time.Time, quantity, cost decimal.Decimal, txID string, source transaction.Kind) (*Lot, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("acquire %s %s in %s: quantity must be positive", quantity, asset, txID)
	}
	if cost.IsNegative() {
		return nil, fmt.Errorf("acquire %s %s in %s: negative cost %s", quantity, asset, txID, cost)
	}
	lot := &Lot{
		Asset:     asset,
		Time:      t,
		TxID:      txID,
		Source:    source,
		Quantity:  quantity,
		Remaining: quantity,
		Cost:      cost,
	}
	ls := l.lots[asset]
	idx := sort.Search(len(ls), func(i int) bool {
		return ls[i].Time.After(t)
	})
	ls = append(ls, nil)
	copy(ls[idx+1:], ls[idx:])
	ls[idx] = lot
	l.lots[asset] = ls
	return lot, nil
}

// Available returns the quantity of an asset held at time t.
func (l *Ledger) Available(asset string, t time.Time) decimal.Decimal {
	var res decimal.Decimal
	for _, lot := range l.lots[asset] {
		if lot.Time.After(t) {
			break
		}
		res = res.Add(lot.Remaining)
	}
	return res
}

// Consume removes quantity of asset from the oldest lots acquired at or
// before t. Nothing is modified if the lots do not cover quantity.
func (l *Ledger) Consume(asset string, t time.Time, quantity decimal.Decimal) (*Consumption, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("consume %s %s: quantity must be positive", quantity, asset)
	}
	if avail := l.Available(asset, t); avail.LessThan(quantity) {
		return nil, &InsufficientLots{Asset: asset, Time: t, Requested: quantity, Available: avail}
	}
	var (
		res  Consumption
		left = quantity
	)
	for _, lot := range l.lots[asset] {
		if !left.IsPositive() {
			break
		}
		if lot.Exhausted() {
			continue
		}
		used := decimal.Min(left, lot.Remaining)
		var cost decimal.Decimal
		if used.Equal(lot.Remaining) {
			cost = lot.Cost.Sub(lot.attributed)
		} else {
			cost = lot.Cost.Mul(used).Div(lot.Quantity)
		}
		lot.Remaining = lot.Remaining.Sub(used)
		lot.attributed = lot.attributed.Add(cost)
		left = left.Sub(used)

		res.Cost = res.Cost.Add(cost)
		res.Uses = append(res.Uses, Use{
			TxID:     lot.TxID,
			Time:     lot.Time,
			Quantity: used,
			Cost:     cost,
		})
	}
	return &res, nil
}

// RemainingByAsset returns the quantity held per asset. Assets with nothing
// left are omitted.
func (l *Ledger) RemainingByAsset() map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal)
	for asset, ls := range l.lots {
		var sum decimal.Decimal
		for _, lot := range ls {
			sum = sum.Add(lot.Remaining)
		}
		if sum.IsPositive() {
			res[asset] = sum
		}
	}
	return res
}

// Snapshot returns copies of all lots with a remaining quantity, ordered
// by asset and acquisition time.
func (l *Ledger) Snapshot() []Lot {
	var res []Lot
	for _, asset := range dict.SortedKeys(l.lots, compare.Ordered[string]) {
		for _, lot := range l.lots[asset] {
			if !lot.Exhausted() {
				res = append(res, *lot)
			}
		}
	}
	return res
}

// Count returns the number of lots with a remaining quantity.
func (l *Ledger) Count() int {
	var n int
	for _, ls := range l.lots {
		for _, lot := range ls {
			if !lot.Exhausted() {
				n++
			}
		}
	}
	return n
}
