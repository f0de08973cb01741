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

// Package classify turns raw export rows into classified transactions.
package classify

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/common/set"
	"github.com/sboehler/nexotax/lib/config"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Classifier classifies raw transactions. It is immutable and safe for
// concurrent use.
type Classifier struct {
	rewardToken    string
	usd, eur, fiat set.Set[string]

	cashbackTypes, reversalTypes, interestTypes set.Set[string]
	exchangeTypes, sellTypes, topUpTypes        set.Set[string]
	cardTypes, repaymentTypes                   set.Set[string]

	reversal *regexp.Regexp
	rules    []Rule
}

// New creates a classifier from the given configuration.
func New(cfg *config.Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{
		rewardToken:    strings.ToUpper(cfg.RewardToken),
		usd:            set.Symbols(cfg.USDAssets...),
		eur:            set.Symbols(cfg.EURAssets...),
		fiat:           set.Symbols(cfg.FiatAssets...),
		cashbackTypes:  set.Of(cfg.CashbackTypes...),
		reversalTypes:  set.Of(cfg.ReversalTypes...),
		interestTypes:  set.Of(cfg.InterestTypes...),
		exchangeTypes:  set.Of(cfg.ExchangeTypes...),
		sellTypes:      set.Of(cfg.SellTypes...),
		topUpTypes:     set.Of(cfg.TopUpTypes...),
		cardTypes:      set.Of(cfg.CardPurchaseTypes...),
		repaymentTypes: set.Of(cfg.RepaymentTypes...),
		reversal:       regexp.MustCompile(cfg.ReversalPattern),
	}
	c.rules = c.defaultRules()
	return c, nil
}

// Rules returns the ordered rule list.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify classifies a single raw transaction. Rows matching no rule are
// returned with kind transaction.Ignored.
func (c *Classifier) Classify(r *transaction.Raw) (*transaction.Transaction, error) {
	f, err := parseFields(r)
	if err != nil {
		return nil, err
	}
	for _, rule := range c.rules {
		if !rule.Match(f) {
			continue
		}
		if rule.Ambiguous {
			return nil, &ClassificationAmbiguous{
				TxID: r.ID,
				Time: f.time,
				Rule: rule.Name,
			}
		}
		return f.build(rule.Kind), nil
	}
	return f.build(transaction.Ignored), nil
}

func (c *Classifier) isCrypto(asset string) bool {
	return asset != "" && !c.usd.Has(asset) && !c.eur.Has(asset) && !c.fiat.Has(asset)
}

// ClassificationAmbiguous is returned for rows which fit more than one
// interpretation and need manual review.
type ClassificationAmbiguous struct {
	TxID string
	Time time.Time
	Rule string
}

func (e *ClassificationAmbiguous) Error() string {
	return fmt.Sprintf("transaction %s (%s): ambiguous classification: %s", e.TxID, e.Time.Format("2006-01-02 15:04:05"), e.Rule)
}

// fields are the parsed fields of a raw row. Asset symbols are upper case,
// amounts keep the sign of the export.
type fields struct {
	raw                        *transaction.Raw
	time                       time.Time
	in, out, feeAsset          string
	inAmt, outAmt, usd, feeAmt decimal.Decimal
	description                string
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseFields(r *transaction.Raw) (*fields, error) {
	var (
		f   = &fields{raw: r}
		err error
	)
	if f.time, err = parseTime(r.Time); err != nil {
		return nil, &transaction.ParseError{TxID: r.ID, Field: "time", Value: r.Time, Err: err}
	}
	for _, p := range []struct {
		field string
		value string
		dest  *decimal.Decimal
	}{
		{"input amount", r.InputAmount, &f.inAmt},
		{"output amount", r.OutputAmount, &f.outAmt},
		{"USD equivalent", r.USDEquivalent, &f.usd},
		{"fee", r.Fee, &f.feeAmt},
	} {
		if *p.dest, err = ParseDecimal(p.value); err != nil {
			return nil, &transaction.ParseError{TxID: r.ID, Time: f.time, Field: p.field, Value: p.value, Err: err}
		}
	}
	f.in = symbol(r.InputCurrency)
	f.out = symbol(r.OutputCurrency)
	f.feeAsset = symbol(r.FeeCurrency)
	f.description = Description(r.Details)
	return f, nil
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func symbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "-" {
		return ""
	}
	return s
}

// ParseDecimal parses an amount as found in exports. A leading currency sign
// and thousands separators are dropped, empty values and "-" are zero.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	var neg bool
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

const approvedPrefix = "approved / "

// Description returns the details of a row without the approval prefix.
func Description(details string) string {
	return strings.TrimPrefix(details, approvedPrefix)
}

// credit returns the asset and quantity a single-asset credit row adds to the
// account.
func (f *fields) credit() (string, decimal.Decimal, bool) {
	switch {
	case f.in != "" && (f.in == f.out || f.out == "") && f.inAmt.IsPositive():
		return f.in, f.inAmt, true
	case f.out != "" && f.outAmt.IsPositive() && (f.in == "" || f.inAmt.IsZero()):
		return f.out, f.outAmt, true
	}
	return "", decimal.Zero, false
}

func (f *fields) touches(asset string) bool {
	return f.in == asset || f.out == asset
}

func (f *fields) build(kind transaction.Kind) *transaction.Transaction {
	t := &transaction.Transaction{
		ID:             f.raw.ID,
		Time:           f.time,
		Kind:           kind,
		Type:           f.raw.Type,
		Description:    f.description,
		InputAsset:     f.in,
		InputQuantity:  f.inAmt.Abs(),
		OutputAsset:    f.out,
		OutputQuantity: f.outAmt.Abs(),
		ValueUSD:       f.usd.Abs(),
		FeeAsset:       f.feeAsset,
		FeeQuantity:    f.feeAmt.Abs(),
	}
	switch kind {
	case transaction.Cashback, transaction.Interest:
		t.InputAsset, t.InputQuantity = "", decimal.Zero
		t.OutputAsset, t.OutputQuantity, _ = f.credit()
	case transaction.ExchangeBuy:
		if asset, qty, ok := f.credit(); ok {
			// top ups credit the bought asset on both sides of the row
			t.InputAsset, t.InputQuantity = asset, qty
			t.OutputAsset, t.OutputQuantity = asset, qty
		}
	}
	return t
}
