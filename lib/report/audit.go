package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/dict"
	"github.com/sboehler/nexotax/lib/common/table"
	"github.com/sboehler/nexotax/lib/model/transaction"
	"github.com/sboehler/nexotax/lib/tax"
)

const timeFormat = "2006-01-02 15:04:05"

// AuditFiles renders the audit CSV files of a year, keyed by file name.
// Lot traces, acquisitions and remaining lots are only present if the
// report was computed in audit mode.
func AuditFiles(res *tax.YearResult) (map[string][]byte, error) {
	var (
		files  = make(map[string][]byte)
		tables = map[string][]*table.Table{
			"acquisitions":   {acquisitions(res.Summary)},
			"interest":       {interest(res.Summary)},
			"disposals":      {disposals(res.Summary)},
			"remaining_lots": {remainingLots(res.Summary)},
		}
	)
	if res.Card != nil {
		tables["card_analysis"] = []*table.Table{cardTransactions(res), cardMetrics(res)}
	}
	var r table.CSVRenderer
	for _, name := range dict.SortedKeys(tables, compare.Ordered[string]) {
		var buf bytes.Buffer
		for i, t := range tables[name] {
			if i > 0 {
				buf.WriteString("\n")
			}
			if err := r.Render(t, &buf); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
		files[fmt.Sprintf("%s_%d.csv", name, res.Year)] = buf.Bytes()
	}
	return files, nil
}

// WriteAudit writes the files to dir, creating it if necessary. Each file
// is replaced atomically.
func WriteAudit(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var err error
	for _, name := range dict.SortedKeys(files, compare.Ordered[string]) {
		err = multierr.Append(err, atomic.WriteFile(filepath.Join(dir, name), bytes.NewReader(files[name])))
	}
	return err
}

func acquisitions(s *tax.AnnualSummary) *table.Table {
	t := table.New(8)
	t.AddHeader("tx_id", "date", "kind", "asset", "quantity", "value_usd", "value_eur", "description")
	for _, a := range s.Acquisitions {
		t.AddRow().
			AddText(a.TxID, table.Left).
			AddText(a.Time.Format(timeFormat), table.Left).
			AddText(a.Kind.String(), table.Left).
			AddText(a.Asset, table.Left).
			AddQuantity(a.Quantity).
			AddMoney(a.ValueUSD).
			AddMoney(a.CostEUR).
			AddText(a.Description, table.Left)
	}
	return t
}

func interest(s *tax.AnnualSummary) *table.Table {
	t := table.New(7)
	t.AddHeader("tx_id", "date", "asset", "amount", "value_usd", "value_eur", "source")
	for _, a := range s.Acquisitions {
		if a.Kind != transaction.Interest {
			continue
		}
		t.AddRow().
			AddText(a.TxID, table.Left).
			AddText(a.Time.Format(timeFormat), table.Left).
			AddText(a.Asset, table.Left).
			AddQuantity(a.Quantity).
			AddMoney(a.ValueUSD).
			AddMoney(a.CostEUR).
			AddText(a.Type, table.Left)
	}
	return t
}

func disposals(s *tax.AnnualSummary) *table.Table {
	t := table.New(11)
	t.AddHeader("tx_id", "date", "kind", "asset", "quantity", "proceeds_eur", "fee_eur", "cost_basis_eur", "gain_eur", "lots_consumed", "description")
	for _, d := range s.Disposals {
		uses := make([]string, 0, len(d.Lots))
		for _, u := range d.Lots {
			uses = append(uses, fmt.Sprintf("%s:%s@%s", u.TxID, u.Quantity.StringFixed(8), u.Cost.StringFixed(2)))
		}
		t.AddRow().
			AddText(d.TxID, table.Left).
			AddText(d.Time.Format(timeFormat), table.Left).
			AddText(d.Kind.String(), table.Left).
			AddText(d.Asset, table.Left).
			AddQuantity(d.Quantity).
			AddMoney(d.ProceedsEUR).
			AddMoney(d.FeeEUR).
			AddMoney(d.CostBasisEUR).
			AddMoney(d.GainEUR).
			AddText(strings.Join(uses, "; "), table.Left).
			AddText(d.Description, table.Left)
	}
	return t
}

func remainingLots(s *tax.AnnualSummary) *table.Table {
	t := table.New(7)
	t.AddHeader("tx_id", "asset", "acquired_date", "source", "original_qty", "remaining_qty", "cost_eur")
	for _, l := range s.Lots {
		t.AddRow().
			AddText(l.TxID, table.Left).
			AddText(l.Asset, table.Left).
			AddText(l.Time.Format(timeFormat), table.Left).
			AddText(l.Source.String(), table.Left).
			AddQuantity(l.Quantity).
			AddQuantity(l.Remaining).
			AddMoney(l.Cost.Mul(l.Remaining).Div(l.Quantity))
	}
	return t
}

func cardTransactions(res *tax.YearResult) *table.Table {
	t := table.New(6)
	t.AddHeader("section", "tx_id", "date", "eur_amount", "usd_amount", "merchant")
	for _, section := range []struct {
		name string
		kind transaction.Kind
	}{
		{"purchase", transaction.CardPurchase},
		{"repayment", transaction.CardRepayment},
	} {
		for _, trx := range res.Card.Transactions {
			if trx.Kind != section.kind {
				continue
			}
			eur, usd, merchant := trx.OutputQuantity, trx.InputQuantity, trx.Description
			if trx.Kind == transaction.CardRepayment {
				eur, usd, merchant = trx.InputQuantity, trx.OutputQuantity, ""
			}
			t.AddRow().
				AddText(section.name, table.Left).
				AddText(trx.ID, table.Left).
				AddText(trx.Time.Format(timeFormat), table.Left).
				AddMoney(eur).
				AddMoney(usd).
				AddText(merchant, table.Left)
		}
	}
	return t
}

func cardMetrics(res *tax.YearResult) *table.Table {
	a := res.Card
	t := table.New(2)
	t.AddHeader("metric", "value")
	for _, m := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"total_purchase_eur", a.PurchaseEUR},
		{"total_purchase_usd", a.PurchaseUSD},
		{"total_repayment_eur", a.RepaymentEUR},
		{"total_repayment_usd", a.RepaymentUSD},
		{"fx_spread_eur", a.FXSpreadEUR},
		{"cashback_eur", a.CashbackEUR},
		{"cashback_tax_eur", a.CashbackTaxEUR},
		{"net_benefit_eur", a.NetBenefitEUR},
		{"effective_rate_pct", a.EffectiveRatePct},
	} {
		t.AddRow().AddText(m.name, table.Left).AddMoney(m.value)
	}
	return t
}
