// Package card computes the profitability of paying with the card after
// FX spread and cashback tax.
package card

import (
	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/common/date"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

var hundred = decimal.NewFromInt(100)

// DefaultTaxRate is the Finnish capital income tax rate.
var DefaultTaxRate = decimal.RequireFromString("0.30")

// Totals are the summed card flows of one year.
type Totals struct {
	PurchaseEUR  decimal.Decimal
	PurchaseUSD  decimal.Decimal
	RepaymentEUR decimal.Decimal
	RepaymentUSD decimal.Decimal
	Purchases    int
	Repayments   int
}

// Add adds a card purchase or repayment. Other kinds are ignored.
func (t *Totals) Add(trx *transaction.Transaction) {
	switch trx.Kind {
	case transaction.CardPurchase:
		t.PurchaseUSD = t.PurchaseUSD.Add(trx.InputQuantity)
		t.PurchaseEUR = t.PurchaseEUR.Add(trx.OutputQuantity)
		t.Purchases++
	case transaction.CardRepayment:
		t.RepaymentEUR = t.RepaymentEUR.Add(trx.InputQuantity)
		t.RepaymentUSD = t.RepaymentUSD.Add(trx.OutputQuantity)
		t.Repayments++
	}
}

// Analysis is the card profitability of one year.
type Analysis struct {
	Year int
	Totals

	// FXSpreadEUR is the EUR lost to the difference between the purchase and
	// repayment rates. The USD amounts of purchases and repayments need not
	// balance within a year; the unmatched USD is valued at the purchase rate.
	FXSpreadEUR      decimal.Decimal
	CashbackEUR      decimal.Decimal
	CashbackTaxEUR   decimal.Decimal
	NetBenefitEUR    decimal.Decimal
	EffectiveRatePct decimal.Decimal

	// Transactions are the purchases and repayments of the year, if the
	// analysis was computed from transactions.
	Transactions []*transaction.Transaction
}

// Analyze computes the analysis for the card transactions of the given year.
// Transactions of other years or kinds are ignored.
func Analyze(year int, trx []*transaction.Transaction, cashbackEUR, taxRate decimal.Decimal) *Analysis {
	var (
		totals Totals
		card   []*transaction.Transaction
		period = date.Year(year)
	)
	for _, t := range trx {
		if !period.Contains(t.Time) {
			continue
		}
		if t.Kind == transaction.CardPurchase || t.Kind == transaction.CardRepayment {
			totals.Add(t)
			card = append(card, t)
		}
	}
	res := Compute(year, totals, cashbackEUR, taxRate)
	res.Transactions = card
	return res
}

// Compute derives the analysis from the year's totals.
func Compute(year int, totals Totals, cashbackEUR, taxRate decimal.Decimal) *Analysis {
	var rate decimal.Decimal
	if !totals.PurchaseUSD.IsZero() {
		rate = totals.PurchaseEUR.Div(totals.PurchaseUSD)
	}
	mismatchEUR := totals.PurchaseUSD.Sub(totals.RepaymentUSD).Mul(rate)
	spread := totals.RepaymentEUR.Sub(totals.PurchaseEUR.Sub(mismatchEUR))
	tax := cashbackEUR.Mul(taxRate)
	net := cashbackEUR.Sub(tax).Sub(spread)
	var pct decimal.Decimal
	if totals.PurchaseEUR.IsPositive() {
		pct = net.Div(totals.PurchaseEUR).Mul(hundred)
	}
	return &Analysis{
		Year:             year,
		Totals:           totals,
		FXSpreadEUR:      spread,
		CashbackEUR:      cashbackEUR,
		CashbackTaxEUR:   tax,
		NetBenefitEUR:    net,
		EffectiveRatePct: pct,
	}
}
