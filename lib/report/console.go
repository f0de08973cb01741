// Package report renders tax results for the console and as audit files.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sboehler/nexotax/lib/card"
	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/dict"
	"github.com/sboehler/nexotax/lib/common/table"
	"github.com/sboehler/nexotax/lib/lots"
	"github.com/sboehler/nexotax/lib/tax"
)

// Console renders reports as text tables.
type Console struct {
	Color bool
}

// Render renders all years of the report followed by the errors.
func (c *Console) Render(r *tax.Report, w io.Writer) error {
	renderer := table.TextRenderer{Color: c.Color, Round: 2}
	for _, res := range r.Years {
		tables := []*table.Table{Summary(res.Summary), Disposals(res.Summary)}
		if res.Card != nil {
			tables = append(tables, Card(res.Card))
		}
		for _, t := range tables {
			if err := renderer.Render(t, w); err != nil {
				return err
			}
		}
		if err := writeErrors(w, fmt.Sprintf("Errors in %d", res.Year), res.Summary.Errors); err != nil {
			return err
		}
	}
	return writeErrors(w, "Transactions without a valid time", r.Unattributed)
}

func writeErrors(w io.Writer, title string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(errs))
	for _, err := range errs {
		fmt.Fprintf(&b, "  - %v\n", err)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Summary renders the capital income and capital gains summary of a year.
func Summary(s *tax.AnnualSummary) *table.Table {
	t := table.New(1, 1)
	t.AddSeparatorRow()
	t.AddRow().AddText(fmt.Sprintf("Finnish crypto tax summary %d", s.Year), table.Left).AddEmpty()
	t.AddSeparatorRow()

	t.AddRow().AddText("Capital income", table.Left).AddEmpty()
	t.AddRow().AddIndented("Cashback events", 2).AddInt(s.CashbackCount)
	t.AddRow().AddIndented("Cashback received", 2).AddQuantity(s.CashbackQuantity)
	t.AddRow().AddIndented("Cashback (EUR)", 2).AddMoney(s.CashbackEUR)
	if s.ReversalCount > 0 {
		t.AddRow().AddIndented("Reversals", 2).AddInt(s.ReversalCount)
		t.AddRow().AddIndented("Reversed (EUR)", 2).AddMoney(s.ReversalEUR)
		t.AddRow().AddIndented("Net cashback (EUR)", 2).AddMoney(s.NetCashbackEUR)
	}
	t.AddRow().AddIndented("Interest events", 2).AddInt(s.InterestCount)
	for _, asset := range dict.SortedKeys(s.InterestByAsset, compare.Ordered[string]) {
		t.AddRow().AddIndented(asset+" received", 4).AddQuantity(s.InterestByAsset[asset])
	}
	t.AddRow().AddIndented("Interest (EUR)", 2).AddMoney(s.InterestEUR)
	t.AddRow().AddText("Total capital income (EUR)", table.Left).AddMoney(s.CapitalIncomeEUR)
	t.AddSeparatorRow()

	if s.ExchangeBuyCount > 0 {
		t.AddRow().AddText("Crypto purchases", table.Left).AddEmpty()
		t.AddRow().AddIndented("Events", 2).AddInt(s.ExchangeBuyCount)
		for _, asset := range dict.SortedKeys(s.ExchangeBuyByAsset, compare.Ordered[string]) {
			t.AddRow().AddIndented(asset+" acquired", 4).AddQuantity(s.ExchangeBuyByAsset[asset])
		}
		t.AddRow().AddIndented("Cost (EUR)", 2).AddMoney(s.ExchangeBuyEUR)
		t.AddSeparatorRow()
	}

	t.AddRow().AddText("Capital gains", table.Left).AddEmpty()
	t.AddRow().AddIndented("Disposals", 2).AddInt(len(s.Disposals))
	t.AddRow().AddIndented("Proceeds (EUR)", 2).AddMoney(s.ProceedsEUR)
	t.AddRow().AddIndented("Fees (EUR)", 2).AddMoney(s.FeesEUR)
	t.AddRow().AddIndented("Cost basis (EUR)", 2).AddMoney(s.CostBasisEUR)
	t.AddRow().AddIndented("Gains (EUR)", 2).AddMoney(s.GainsEUR)
	t.AddRow().AddIndented("Losses (EUR)", 2).AddMoney(s.LossesEUR)
	t.AddRow().AddIndented("Net gain/loss (EUR)", 2).AddSigned(s.GainEUR)
	if s.Exempt {
		t.AddRow().AddIndented("Exempt, proceeds within limit", 2).AddText("yes", table.Right)
	}
	t.AddSeparatorRow()

	t.AddRow().AddText("Carry-forward", table.Left).AddEmpty()
	t.AddRow().AddIndented("Remaining lots", 2).AddInt(s.RemainingLots)
	for _, asset := range dict.SortedKeys(s.Remaining, compare.Ordered[string]) {
		t.AddRow().AddIndented(asset, 4).AddQuantity(s.Remaining[asset])
	}
	if len(s.Unclassified) > 0 {
		t.AddRow().AddIndented("Unclassified transactions", 2).AddInt(len(s.Unclassified))
	}
	t.AddSeparatorRow()
	return t
}

// Disposals renders the disposals of a year.
func Disposals(s *tax.AnnualSummary) *table.Table {
	t := table.New(1, 1, 1, 1, 1, 1, 1, 1)
	t.AddSeparatorRow()
	t.AddHeader("Date", "Asset", "Quantity", "Acquired", "Proceeds", "Fee", "Cost basis", "Gain/loss")
	t.AddSeparatorRow()
	if len(s.Disposals) == 0 {
		t.AddRow().AddText("No disposals during this year.", table.Left).FillEmpty()
	}
	for _, d := range s.Disposals {
		t.AddRow().
			AddText(d.Time.Format("2006-01-02"), table.Left).
			AddText(d.Asset, table.Left).
			AddQuantity(d.Quantity).
			AddText(acquired(d.Lots), table.Left).
			AddMoney(d.ProceedsEUR).
			AddMoney(d.FeeEUR).
			AddMoney(d.CostBasisEUR).
			AddSigned(d.GainEUR)
	}
	t.AddSeparatorRow()
	return t
}

// acquired formats the range of acquisition dates of the consumed lots.
func acquired(uses []lots.Use) string {
	if len(uses) == 0 {
		return ""
	}
	var first, last time.Time
	for i, u := range uses {
		if i == 0 || u.Time.Before(first) {
			first = u.Time
		}
		if i == 0 || u.Time.After(last) {
			last = u.Time
		}
	}
	f, l := first.Format("2006-01-02"), last.Format("2006-01-02")
	if f == l {
		return f
	}
	return f + " - " + l
}

// Card renders the card profitability of a year.
func Card(a *card.Analysis) *table.Table {
	t := table.New(1, 1)
	t.AddSeparatorRow()
	t.AddRow().AddText(fmt.Sprintf("Card cashback profitability %d", a.Year), table.Left).AddEmpty()
	t.AddSeparatorRow()
	t.AddRow().AddText("Card purchases", table.Left).AddInt(a.Purchases)
	t.AddRow().AddIndented("EUR spent", 2).AddMoney(a.PurchaseEUR)
	t.AddRow().AddIndented("USD charged", 2).AddMoney(a.PurchaseUSD)
	t.AddRow().AddText("Credit line repayments", table.Left).AddInt(a.Repayments)
	t.AddRow().AddIndented("EUR spent", 2).AddMoney(a.RepaymentEUR)
	t.AddRow().AddIndented("USD cleared", 2).AddMoney(a.RepaymentUSD)
	t.AddSeparatorRow()
	t.AddRow().AddText("FX spread cost (EUR)", table.Left).AddMoney(a.FXSpreadEUR)
	t.AddRow().AddText("Cashback earned (EUR)", table.Left).AddMoney(a.CashbackEUR)
	t.AddRow().AddText("Tax on cashback (EUR)", table.Left).AddMoney(a.CashbackTaxEUR)
	t.AddRow().AddText("Net benefit (EUR)", table.Left).AddSigned(a.NetBenefitEUR)
	t.AddRow().AddText("Effective rate", table.Left).AddPercent(a.EffectiveRatePct)
	t.AddSeparatorRow()
	return t
}
