package classify

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/sboehler/nexotax/lib/config"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

func raw(id, typ, inCur, inAmt, outCur, outAmt, usd, details, ts string) *transaction.Raw {
	return &transaction.Raw{
		ID:             id,
		Type:           typ,
		InputCurrency:  inCur,
		InputAmount:    inAmt,
		OutputCurrency: outCur,
		OutputAmount:   outAmt,
		USDEquivalent:  usd,
		Fee:            "-",
		FeeCurrency:    "-",
		Details:        details,
		Time:           ts,
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(config.Default())
	if err != nil {
		t.Fatalf("New() returned unexpected error: %v", err)
	}
	return c
}

func TestClassify(t *testing.T) {
	var (
		c  = newClassifier(t)
		ts = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	)
	var tests = []struct {
		desc string
		raw  *transaction.Raw
		want *transaction.Transaction
	}{
		{
			desc: "cashback",
			raw:  raw("TX1", "Cashback", "NEXO", "2.50000000", "NEXO", "2.50000000", "$2.30", "approved / CRV*Wolt Poland POL", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX1", Time: ts, Kind: transaction.Cashback, Type: "Cashback",
				Description: "CRV*Wolt Poland POL",
				OutputAsset: "NEXO", OutputQuantity: d("2.5"),
				ValueUSD: d("2.30"),
			},
		},
		{
			desc: "cashback reversal by type",
			raw:  raw("TX2", "Nexo Card Cashback Reversal", "NEXO", "-2.50000000", "NEXO", "-2.50000000", "$2.30", "approved / Refund", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX2", Time: ts, Kind: transaction.CashbackReversal, Type: "Nexo Card Cashback Reversal",
				Description: "Refund",
				InputAsset:  "NEXO", InputQuantity: d("2.5"),
				OutputAsset: "NEXO", OutputQuantity: d("2.5"),
				ValueUSD: d("2.30"),
			},
		},
		{
			desc: "cashback reversal by description",
			raw:  raw("TX3", "Cashback", "NEXO", "-1", "NEXO", "-1", "$1.00", "Cashback reversal for CRV*Shop", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX3", Time: ts, Kind: transaction.CashbackReversal, Type: "Cashback",
				Description: "Cashback reversal for CRV*Shop",
				InputAsset:  "NEXO", InputQuantity: d("1"),
				OutputAsset: "NEXO", OutputQuantity: d("1"),
				ValueUSD: d("1.00"),
			},
		},
		{
			desc: "btc interest",
			raw:  raw("TX4", "Interest", "BTC", "0.00010000", "BTC", "0.00010000", "$4.00", "approved / Interest", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX4", Time: ts, Kind: transaction.Interest, Type: "Interest",
				Description: "Interest",
				OutputAsset: "BTC", OutputQuantity: d("0.0001"),
				ValueUSD: d("4"),
			},
		},
		{
			desc: "fixed term interest in a stable coin",
			raw:  raw("TX5", "Fixed Term Interest", "USDT", "1.2", "USDT", "1.2", "$1.20", "approved / Fixed Term Interest", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX5", Time: ts, Kind: transaction.Interest, Type: "Fixed Term Interest",
				Description: "Fixed Term Interest",
				OutputAsset: "USDT", OutputQuantity: d("1.2"),
				ValueUSD: d("1.2"),
			},
		},
		{
			desc: "card purchase",
			raw:  raw("TX6", "Nexo Card Purchase", "xUSD", "-10.00000000", "EUR", "8.50000000", "$10.00", "approved / CRV*Shop", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX6", Time: ts, Kind: transaction.CardPurchase, Type: "Nexo Card Purchase",
				Description: "CRV*Shop",
				InputAsset:  "XUSD", InputQuantity: d("10"),
				OutputAsset: "EUR", OutputQuantity: d("8.5"),
				ValueUSD: d("10"),
			},
		},
		{
			desc: "card repayment",
			raw:  raw("TX7", "Exchange Liquidation", "EURX", "-95", "USDX", "100", "$100.00", "approved / Liquidation", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX7", Time: ts, Kind: transaction.CardRepayment, Type: "Exchange Liquidation",
				Description: "Liquidation",
				InputAsset:  "EURX", InputQuantity: d("95"),
				OutputAsset: "USDX", OutputQuantity: d("100"),
				ValueUSD: d("100"),
			},
		},
		{
			desc: "crypto to crypto",
			raw:  raw("TX8", "Exchange", "NEXO", "-487.00000000", "BTC", "0.00488461", "$511.68", "approved / Exchange NEXO Token to Bitcoin", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX8", Time: ts, Kind: transaction.CryptoSwap, Type: "Exchange",
				Description: "Exchange NEXO Token to Bitcoin",
				InputAsset:  "NEXO", InputQuantity: d("487"),
				OutputAsset: "BTC", OutputQuantity: d("0.00488461"),
				ValueUSD: d("511.68"),
			},
		},
		{
			desc: "fiat to crypto",
			raw:  raw("TX9", "Exchange", "EURX", "-500", "BTC", "0.01", "$530.00", "approved / Exchange EURX to Bitcoin", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX9", Time: ts, Kind: transaction.ExchangeBuy, Type: "Exchange",
				Description: "Exchange EURX to Bitcoin",
				InputAsset:  "EURX", InputQuantity: d("500"),
				OutputAsset: "BTC", OutputQuantity: d("0.01"),
				ValueUSD: d("530"),
			},
		},
		{
			desc: "crypto to fiat",
			raw:  raw("TX10", "Exchange Collateral", "ETH", "-0.15", "EUR", "600", "$650.00", "approved / Exchange Ethereum to EUR", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX10", Time: ts, Kind: transaction.ExchangeSell, Type: "Exchange Collateral",
				Description: "Exchange Ethereum to EUR",
				InputAsset:  "ETH", InputQuantity: d("0.15"),
				OutputAsset: "EUR", OutputQuantity: d("600"),
				ValueUSD: d("650"),
			},
		},
		{
			desc: "withdrawal",
			raw:  raw("TX11", "Withdrawal", "BTC", "-0.01", "BTC", "-0.01", "$400.00", "approved / Withdrawal", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX11", Time: ts, Kind: transaction.ExchangeSell, Type: "Withdrawal",
				Description: "Withdrawal",
				InputAsset:  "BTC", InputQuantity: d("0.01"),
				OutputAsset: "BTC", OutputQuantity: d("0.01"),
				ValueUSD: d("400"),
			},
		},
		{
			desc: "crypto top up",
			raw:  raw("TX12", "Top up Crypto", "BTC", "0.01", "BTC", "0.01", "$400.00", "approved / Top up", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX12", Time: ts, Kind: transaction.ExchangeBuy, Type: "Top up Crypto",
				Description: "Top up",
				InputAsset:  "BTC", InputQuantity: d("0.01"),
				OutputAsset: "BTC", OutputQuantity: d("0.01"),
				ValueUSD: d("400"),
			},
		},
		{
			desc: "interest charge is ignored",
			raw:  raw("TX13", "Interest", "NEXO", "-0.01000000", "-", "0.00000000", "$0.01", "approved / interest charge", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX13", Time: ts, Kind: transaction.Ignored, Type: "Interest",
				Description: "interest charge",
				InputAsset:  "NEXO", InputQuantity: d("0.01"),
				OutputQuantity: d("0"),
				ValueUSD:       d("0.01"),
			},
		},
		{
			desc: "unknown type is ignored",
			raw:  raw("TX14", "Deposit To Exchange", "EUR", "100", "EUR", "100", "$108.00", "approved / Deposit", "2025-06-15 10:00:00"),
			want: &transaction.Transaction{
				ID: "TX14", Time: ts, Kind: transaction.Ignored, Type: "Deposit To Exchange",
				Description: "Deposit",
				InputAsset:  "EUR", InputQuantity: d("100"),
				OutputAsset: "EUR", OutputQuantity: d("100"),
				ValueUSD: d("108"),
			},
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got, err := c.Classify(test.raw)
			if err != nil {
				t.Fatalf("Classify() returned unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("Classify() returned unexpected diff (-want/+got):\n%s", diff)
			}
		})
	}
}

func TestClassifyFee(t *testing.T) {
	var (
		c = newClassifier(t)
		r = raw("F1", "Exchange", "BTC", "-0.01", "EUR", "500", "$540.00", "", "2025-06-15 10:00:00")
	)
	r.Fee, r.FeeCurrency = "1.5", "EUR"
	got, err := c.Classify(r)
	if err != nil {
		t.Fatalf("Classify() returned unexpected error: %v", err)
	}
	if got.FeeAsset != "EUR" || !got.FeeQuantity.Equal(d("1.5")) {
		t.Errorf("Classify() fee = %s %s, want 1.5 EUR", got.FeeQuantity, got.FeeAsset)
	}
}

func TestClassifyAmbiguous(t *testing.T) {
	var c = newClassifier(t)
	var tests = []struct {
		desc string
		raw  *transaction.Raw
	}{
		{
			desc: "cashback in another asset",
			raw:  raw("A1", "Cashback", "BTC", "0.0001", "BTC", "0.0001", "$4.00", "approved / Shop", "2025-06-15 10:00:00"),
		},
		{
			desc: "swap of the reward token described as reversal",
			raw:  raw("A2", "Exchange", "NEXO", "-10", "BTC", "0.0001", "$10.00", "Cashback reversal swap", "2025-06-15 10:00:00"),
		},
		{
			desc: "exchange into the same asset",
			raw:  raw("A3", "Exchange", "BTC", "-0.1", "BTC", "0.1", "$10.00", "", "2025-06-15 10:00:00"),
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := c.Classify(test.raw)
			var target *ClassificationAmbiguous
			if !errors.As(err, &target) {
				t.Fatalf("Classify() = %v, want ClassificationAmbiguous", err)
			}
			if target.TxID != test.raw.ID {
				t.Errorf("ClassificationAmbiguous.TxID = %q, want %q", target.TxID, test.raw.ID)
			}
		})
	}
}

func TestClassifyParseError(t *testing.T) {
	var c = newClassifier(t)
	var tests = []struct {
		desc  string
		raw   *transaction.Raw
		field string
	}{
		{
			desc:  "bad amount",
			raw:   raw("P1", "Cashback", "NEXO", "2,5x", "NEXO", "2.5", "$2.30", "", "2025-06-15 10:00:00"),
			field: "input amount",
		},
		{
			desc:  "bad usd value",
			raw:   raw("P2", "Cashback", "NEXO", "2.5", "NEXO", "2.5", "USD 2.30", "", "2025-06-15 10:00:00"),
			field: "USD equivalent",
		},
		{
			desc:  "bad time",
			raw:   raw("P3", "Cashback", "NEXO", "2.5", "NEXO", "2.5", "$2.30", "", "15.06.2025 10:00"),
			field: "time",
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := c.Classify(test.raw)
			var target *transaction.ParseError
			if !errors.As(err, &target) {
				t.Fatalf("Classify() = %v, want ParseError", err)
			}
			if target.TxID != test.raw.ID || target.Field != test.field {
				t.Errorf("ParseError = {%s %s}, want {%s %s}", target.TxID, target.Field, test.raw.ID, test.field)
			}
		})
	}
}

func TestParseDecimal(t *testing.T) {
	var tests = []struct {
		input string
		want  decimal.Decimal
	}{
		{"$1.23", d("1.23")},
		{"4.56", d("4.56")},
		{"-$1,234.50", d("-1234.5")},
		{"-", decimal.Zero},
		{"", decimal.Zero},
	}
	for _, test := range tests {
		got, err := ParseDecimal(test.input)
		if err != nil {
			t.Fatalf("ParseDecimal(%q) returned unexpected error: %v", test.input, err)
		}
		if !got.Equal(test.want) {
			t.Errorf("ParseDecimal(%q) = %s, want %s", test.input, got, test.want)
		}
	}
}

func TestRulesAreOrdered(t *testing.T) {
	var (
		c     = newClassifier(t)
		names []string
	)
	for _, r := range c.Rules() {
		names = append(names, r.Name)
	}
	// reversal must be checked before cashback, which in turn precedes interest
	index := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		t.Fatalf("rule %q not found", name)
		return -1
	}
	if !(index("cashback reversal") < index("cashback") && index("cashback") < index("interest")) {
		t.Errorf("unexpected rule order: %v", names)
	}
}
