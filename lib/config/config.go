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

// Package config holds the tunable parts of the classification and the tax
// computation.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Config is the tool configuration. All fields have defaults, a config file
// only needs to contain the fields it overrides.
type Config struct {
	// RewardToken is the asset in which card cashback is paid.
	RewardToken string `yaml:"reward_token"`

	// USDAssets are USD-pegged settlement assets.
	USDAssets []string `yaml:"usd_assets"`
	// EURAssets are EUR-pegged assets.
	EURAssets []string `yaml:"eur_assets"`
	// FiatAssets are further assets which are not treated as crypto.
	FiatAssets []string `yaml:"fiat_assets"`

	CashbackTypes     []string `yaml:"cashback_types"`
	ReversalTypes     []string `yaml:"reversal_types"`
	ReversalPattern   string   `yaml:"reversal_pattern"`
	InterestTypes     []string `yaml:"interest_types"`
	ExchangeTypes     []string `yaml:"exchange_types"`
	SellTypes         []string `yaml:"sell_types"`
	TopUpTypes        []string `yaml:"top_up_types"`
	CardPurchaseTypes []string `yaml:"card_purchase_types"`
	RepaymentTypes    []string `yaml:"repayment_types"`

	// TaxRate is the capital income tax rate applied to cashback.
	TaxRate string `yaml:"tax_rate"`
	// ExemptionLimit is the yearly total of disposal proceeds up to which
	// capital gains are tax-exempt.
	ExemptionLimit string `yaml:"exemption_limit"`
	// FXFallback selects the rate used for days without card purchases,
	// either "preceding" or "nearest".
	FXFallback string `yaml:"fx_fallback"`
}

// Default returns the configuration for Nexo exports.
func Default() *Config {
	return &Config{
		RewardToken:       "NEXO",
		USDAssets:         []string{"USD", "xUSD", "USDX"},
		EURAssets:         []string{"EUR", "EURX"},
		CashbackTypes:     []string{"Cashback"},
		ReversalTypes:     []string{"Nexo Card Cashback Reversal"},
		ReversalPattern:   `(?i)cashback reversal`,
		InterestTypes:     []string{"Interest", "Fixed Term Interest", "Exchange Cashback"},
		ExchangeTypes:     []string{"Exchange", "Exchange Collateral"},
		SellTypes:         []string{"Manual Sell Order", "Withdrawal"},
		TopUpTypes:        []string{"Top up Crypto"},
		CardPurchaseTypes: []string{"Nexo Card Purchase"},
		RepaymentTypes:    []string{"Exchange Liquidation"},
		TaxRate:           "0.30",
		ExemptionLimit:    "1000",
		FXFallback:        "preceding",
	}
}

// Load reads the configuration file at the given path on top of the
// defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode decodes a configuration on top of the defaults. Unknown fields are
// an error.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (cfg *Config) Validate() error {
	if cfg.RewardToken == "" {
		return fmt.Errorf("reward_token must not be empty")
	}
	if len(cfg.USDAssets) == 0 || len(cfg.EURAssets) == 0 {
		return fmt.Errorf("usd_assets and eur_assets must not be empty")
	}
	if _, err := regexp.Compile(cfg.ReversalPattern); err != nil {
		return fmt.Errorf("reversal_pattern: %w", err)
	}
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return fmt.Errorf("tax_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax_rate: %s is not within [0, 1]", cfg.TaxRate)
	}
	if _, err := decimal.NewFromString(cfg.ExemptionLimit); err != nil {
		return fmt.Errorf("exemption_limit: %w", err)
	}
	switch cfg.FXFallback {
	case "preceding", "nearest":
	default:
		return fmt.Errorf("fx_fallback: expected preceding or nearest, got %q", cfg.FXFallback)
	}
	return nil
}

// Rate returns the tax rate. The configuration must be valid.
func (cfg *Config) Rate() decimal.Decimal {
	return decimal.RequireFromString(cfg.TaxRate)
}

// Limit returns the exemption limit. The configuration must be valid.
func (cfg *Config) Limit() decimal.Decimal {
	return decimal.RequireFromString(cfg.ExemptionLimit)
}
