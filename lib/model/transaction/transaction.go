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

package transaction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/common/compare"
)

// Kind is the semantic kind of a transaction.
type Kind int

const (
	// Ignored transactions do not contribute to any total.
	Ignored Kind = iota
	// Cashback is a reward token credit for a card purchase.
	Cashback
	// CashbackReversal reduces previously credited cashback income.
	CashbackReversal
	// Interest is an earn credit in any asset.
	Interest
	// ExchangeBuy acquires crypto with fiat or a stable asset.
	ExchangeBuy
	// ExchangeSell disposes crypto for fiat or a stable asset.
	ExchangeSell
	// CryptoSwap disposes one crypto asset and acquires another.
	CryptoSwap
	// CardPurchase is a card payment settled in USD, paid out in EUR.
	CardPurchase
	// CardRepayment repays the credit line from EUR into USD.
	CardRepayment
)

var kindNames = map[Kind]string{
	Ignored:          "ignored",
	Cashback:         "cashback",
	CashbackReversal: "cashback_reversal",
	Interest:         "interest",
	ExchangeBuy:      "exchange_buy",
	ExchangeSell:     "exchange_sell",
	CryptoSwap:       "crypto_swap",
	CardPurchase:     "card_purchase",
	CardRepayment:    "card_repayment",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Acquires returns whether transactions of this kind create lots.
func (k Kind) Acquires() bool {
	return k == Cashback || k == Interest || k == ExchangeBuy || k == CryptoSwap
}

// Disposes returns whether transactions of this kind consume lots.
func (k Kind) Disposes() bool {
	return k == ExchangeSell || k == CryptoSwap
}

// Raw is a transaction row as exported by the platform, before any
// interpretation of its fields.
type Raw struct {
	ID             string
	Type           string
	InputCurrency  string
	InputAmount    string
	OutputCurrency string
	OutputAmount   string
	USDEquivalent  string
	Fee            string
	FeeCurrency    string
	Details        string
	Time           string

	// Source and Line locate the row in its input file.
	Source string
	Line   int
}

// Transaction is a classified transaction with normalized fields. Quantities
// are absolute values; the direction follows from the kind: the input side is
// given away, the output side is received.
type Transaction struct {
	ID          string
	Time        time.Time
	Kind        Kind
	Type        string
	Description string

	InputAsset     string
	InputQuantity  decimal.Decimal
	OutputAsset    string
	OutputQuantity decimal.Decimal

	ValueUSD decimal.Decimal

	FeeAsset    string
	FeeQuantity decimal.Decimal
}

// Year returns the tax year of the transaction.
func (t *Transaction) Year() int {
	return t.Time.UTC().Year()
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s %s %s", t.ID, t.Time.Format("2006-01-02 15:04:05"), t.Kind)
}

// Compare orders transactions by time. At equal times, acquisitions come
// before disposals, then transactions are ordered by id.
func Compare(t1, t2 *Transaction) compare.Order {
	if o := compare.Time(t1.Time, t2.Time); o != compare.Equal {
		return o
	}
	if o := compare.Ordered(rank(t1.Kind), rank(t2.Kind)); o != compare.Equal {
		return o
	}
	return compare.Ordered(t1.ID, t2.ID)
}

func rank(k Kind) int {
	switch {
	case k == CryptoSwap:
		return 1
	case k.Disposes():
		return 2
	}
	return 0
}

// ParseError is returned for a malformed field of a raw transaction.
type ParseError struct {
	TxID  string
	Time  time.Time
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("transaction %s: invalid %s %q: %v", e.TxID, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
