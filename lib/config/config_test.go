package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
reward_token: CRO
tax_rate: "0.34"
fx_fallback: nearest
usd_assets: [USD, USDC]
`))
	if err != nil {
		t.Fatalf("Decode() returned unexpected error: %v", err)
	}
	want := Default()
	want.RewardToken = "CRO"
	want.TaxRate = "0.34"
	want.FXFallback = "nearest"
	want.USDAssets = []string{"USD", "USDC"}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Decode() returned unexpected diff (-want/+got):\n%s", diff)
	}
	if !cfg.Rate().Equal(decimal.RequireFromString("0.34")) {
		t.Errorf("Rate() = %s, want 0.34", cfg.Rate())
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Decode() returned unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Decode() returned unexpected diff (-want/+got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	var tests = []struct {
		desc, input string
	}{
		{"unknown field", "reward: NEXO\n"},
		{"bad tax rate", "tax_rate: abc\n"},
		{"tax rate out of range", "tax_rate: \"1.5\"\n"},
		{"bad pattern", "reversal_pattern: \"(\"\n"},
		{"bad fallback", "fx_fallback: later\n"},
		{"empty token", "reward_token: \"\"\n"},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(test.input)); err == nil {
				t.Errorf("Decode(%q) returned no error", test.input)
			}
		})
	}
}
