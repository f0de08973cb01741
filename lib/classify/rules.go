package classify

import (
	"github.com/sboehler/nexotax/lib/common/predicate"
	"github.com/sboehler/nexotax/lib/common/set"
	"github.com/sboehler/nexotax/lib/model/transaction"
)

// Rule is a classification rule. Rules are evaluated in order, the first
// matching rule determines the kind.
type Rule struct {
	Name  string
	Kind  transaction.Kind
	Match predicate.Predicate[*fields]

	// Ambiguous rules reject the row instead of classifying it.
	Ambiguous bool
}

func (c *Classifier) defaultRules() []Rule {
	var (
		exchange        = typeIn(c.exchangeTypes)
		rewardToken     = touches(c.rewardToken)
		reversalText    = predicate.Field(description, predicate.Matches(c.reversal))
		cryptoIn        = predicate.Field(input, c.isCrypto)
		cryptoOut       = predicate.Field(output, c.isCrypto)
		cryptoCredit    = predicate.Field(creditAsset, c.isCrypto)
		rewardCredit    = predicate.Field(creditAsset, func(a string) bool { return a == c.rewardToken })
		selfExchange    = func(f *fields) bool { return f.in != "" && f.in == f.out }
		usdIn, usdOut   = predicate.Field(input, c.usd.Has), predicate.Field(output, c.usd.Has)
		eurIn, eurOut   = predicate.Field(input, c.eur.Has), predicate.Field(output, c.eur.Has)
		cashbackCredit  = predicate.And(isCredit, typeIn(c.cashbackTypes))
		interestCredit  = predicate.And(isCredit, typeIn(c.interestTypes), cryptoCredit)
		topUpCredit     = predicate.And(isCredit, typeIn(c.topUpTypes), cryptoCredit)
		reversalByType  = typeIn(c.reversalTypes)
		reversalByText  = predicate.And(rewardToken, reversalText)
		cardPurchase    = predicate.And(typeIn(c.cardTypes), usdIn, eurOut)
		cardRepayment   = predicate.And(typeIn(c.repaymentTypes), eurIn, usdOut)
		exchangeRewards = predicate.And(exchange, rewardToken, reversalText)
	)
	return []Rule{
		{
			Name:      "exchange leg in reward token with cashback description",
			Ambiguous: true,
			Match:     exchangeRewards,
		},
		{
			Name:      "exchange of an asset into itself",
			Ambiguous: true,
			Match:     predicate.And(exchange, selfExchange),
		},
		{
			Name:  "cashback reversal",
			Kind:  transaction.CashbackReversal,
			Match: predicate.Or(reversalByType, reversalByText),
		},
		{
			Name:  "cashback",
			Kind:  transaction.Cashback,
			Match: predicate.And(cashbackCredit, rewardCredit),
		},
		{
			Name:      "cashback in an asset other than the reward token",
			Ambiguous: true,
			Match:     cashbackCredit,
		},
		{
			Name:  "interest",
			Kind:  transaction.Interest,
			Match: interestCredit,
		},
		{
			Name:  "card purchase",
			Kind:  transaction.CardPurchase,
			Match: cardPurchase,
		},
		{
			Name:  "card repayment",
			Kind:  transaction.CardRepayment,
			Match: cardRepayment,
		},
		{
			Name:  "crypto swap",
			Kind:  transaction.CryptoSwap,
			Match: predicate.And(exchange, cryptoIn, cryptoOut),
		},
		{
			Name:  "exchange sell",
			Kind:  transaction.ExchangeSell,
			Match: predicate.And(exchange, cryptoIn),
		},
		{
			Name:  "exchange buy",
			Kind:  transaction.ExchangeBuy,
			Match: predicate.And(exchange, cryptoOut),
		},
		{
			Name:  "sell order",
			Kind:  transaction.ExchangeSell,
			Match: predicate.And(typeIn(c.sellTypes), cryptoIn),
		},
		{
			Name:  "crypto top up",
			Kind:  transaction.ExchangeBuy,
			Match: topUpCredit,
		},
	}
}

func typeIn(types set.Set[string]) predicate.Predicate[*fields] {
	return func(f *fields) bool {
		return types.Has(f.raw.Type)
	}
}

func touches(asset string) predicate.Predicate[*fields] {
	return func(f *fields) bool {
		return f.touches(asset)
	}
}

func isCredit(f *fields) bool {
	_, _, ok := f.credit()
	return ok
}

func creditAsset(f *fields) string {
	asset, _, _ := f.credit()
	return asset
}

func input(f *fields) string       { return f.in }
func output(f *fields) string      { return f.out }
func description(f *fields) string { return f.description }
