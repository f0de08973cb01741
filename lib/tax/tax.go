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

// Package tax computes annual capital income and capital gains figures.
package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/card"
	"github.com/sboehler/nexotax/lib/lots"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Report is the result of a run.
type Report struct {
	// Years holds the results of the requested years in ascending order.
	// After a fatal error, it holds only the years completed before it.
	Years []*YearResult

	// Unattributed holds errors of rows whose time could not be parsed.
	Unattributed []error
}

// Year returns the result for the given year, or nil.
func (r *Report) Year(y int) *YearResult {
	for _, res := range r.Years {
		if res.Year == y {
			return res
		}
	}
	return nil
}

// YearResult is the result of one tax year.
type YearResult struct {
	Year    int
	Summary *AnnualSummary
	Card    *card.Analysis
}

// AnnualSummary holds the aggregated figures of one year.
type AnnualSummary struct {
	Year int

	CashbackCount    int
	CashbackQuantity decimal.Decimal
	CashbackEUR      decimal.Decimal
	ReversalCount    int
	ReversalEUR      decimal.Decimal
	NetCashbackEUR   decimal.Decimal

	InterestCount   int
	InterestByAsset map[string]decimal.Decimal
	InterestEUR     decimal.Decimal

	ExchangeBuyCount   int
	ExchangeBuyByAsset map[string]decimal.Decimal
	ExchangeBuyEUR     decimal.Decimal

	Disposals    []*Disposal
	ProceedsEUR  decimal.Decimal
	FeesEUR      decimal.Decimal
	CostBasisEUR decimal.Decimal
	GainEUR      decimal.Decimal
	GainsEUR     decimal.Decimal
	LossesEUR    decimal.Decimal
	// Exempt is set if the year's disposal proceeds do not exceed the
	// exemption limit, in which case gains are tax-free and losses are not
	// deductible.
	Exempt bool

	// CapitalIncomeEUR is net cashback plus interest.
	CapitalIncomeEUR decimal.Decimal

	// Remaining is the carry-forward inventory at year end.
	Remaining     map[string]decimal.Decimal
	RemainingLots int

	Errors       []error
	Unclassified []*transaction.Transaction

	// Audit details, only populated in audit mode.
	Acquisitions []*Acquisition
	Lots         []lots.Lot
}

// Acquisition is a lot created during the year.
type Acquisition struct {
	TxID     string
	Time     time.Time
	Kind     transaction.Kind
	Asset    string
	Quantity decimal.Decimal
	ValueUSD decimal.Decimal
	CostEUR  decimal.Decimal

	Type        string
	Description string
}

// Disposal is the sale or swap of a crypto asset.
type Disposal struct {
	TxID        string
	Time        time.Time
	Kind        transaction.Kind
	Asset       string
	Quantity    decimal.Decimal
	Description string

	ProceedsUSD  decimal.Decimal
	ProceedsEUR  decimal.Decimal
	FeeEUR       decimal.Decimal
	CostBasisEUR decimal.Decimal
	GainEUR      decimal.Decimal

	// Lots is the consumption trace, only populated in audit mode.
	Lots []lots.Use
}

// TransactionError attributes an error to a transaction.
type TransactionError struct {
	TxID string
	Time time.Time
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("transaction %s: %v", e.TxID, e.Err)
	}
	return fmt.Sprintf("transaction %s at %s: %v", e.TxID, e.Time.Format("2006-01-02 15:04:05"), e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
