package tax

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sboehler/nexotax/lib/card"
	"github.com/sboehler/nexotax/lib/classify"
	"github.com/sboehler/nexotax/lib/common/compare"
	"github.com/sboehler/nexotax/lib/common/dict"
	"github.com/sboehler/nexotax/lib/common/set"
	"github.com/sboehler/nexotax/lib/config"
	"github.com/sboehler/nexotax/lib/fx"
	"github.com/sboehler/nexotax/lib/lots"
	"github.com/sboehler/nexotax/lib/model/transaction"
	"github.com/sboehler/nexotax/lib/nexo"
)

// Options configure a run.
type Options struct {
	// Years are the years to report. If empty, all years present in the
	// input are reported.
	Years []int
	// Audit retains lot traces, acquisitions and remaining lots.
	Audit bool
	// Strict aborts the run on the first parse or classification error.
	Strict bool
}

// Engine computes tax reports. An engine holds no state between runs.
type Engine struct {
	cfg        *config.Config
	classifier *classify.Classifier
	fallback   fx.Fallback
	usd, eur   set.Set[string]
	logger     *zap.Logger
}

// New creates an engine. A nil logger disables logging.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := classify.New(cfg)
	if err != nil {
		return nil, err
	}
	fallback, err := fx.ParseFallback(cfg.FXFallback)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		classifier: c,
		fallback:   fallback,
		usd:        set.Symbols(cfg.USDAssets...),
		eur:        set.Symbols(cfg.EURAssets...),
		logger:     logger,
	}, nil
}

// Run classifies the raw rows and processes them. Rows with a transaction id
// seen before are dropped.
//
// On a fatal error, the returned report holds the years completed before
// the failing year.
func (e *Engine) Run(rows []*transaction.Raw, opts Options) (*Report, error) {
	rows, dropped := nexo.Dedupe(rows)
	if dropped > 0 {
		e.logger.Info("dropped duplicate transactions", zap.Int("count", dropped))
	}
	var (
		report  = new(Report)
		trx     = make([]*transaction.Transaction, 0, len(rows))
		pending = make(map[int][]error)
		kinds   = make(map[transaction.Kind]int)
	)
	for _, row := range rows {
		t, err := e.classifier.Classify(row)
		if err != nil {
			ts := errorTime(err)
			te := &TransactionError{TxID: row.ID, Time: ts, Err: err}
			if opts.Strict {
				return report, te
			}
			e.logger.Warn("skipping transaction", zap.String("id", row.ID), zap.String("source", row.Source), zap.Int("line", row.Line), zap.Error(err))
			if ts.IsZero() {
				report.Unattributed = append(report.Unattributed, te)
			} else {
				pending[ts.UTC().Year()] = append(pending[ts.UTC().Year()], te)
			}
			continue
		}
		kinds[t.Kind]++
		trx = append(trx, t)
	}
	for _, k := range dict.SortedKeys(kinds, compare.Ordered[transaction.Kind]) {
		e.logger.Debug("classified transactions", zap.Stringer("kind", k), zap.Int("count", kinds[k]))
	}
	return e.process(trx, pending, report, opts)
}

// Process processes classified transactions.
func (e *Engine) Process(trx []*transaction.Transaction, opts Options) (*Report, error) {
	return e.process(trx, nil, new(Report), opts)
}

func errorTime(err error) time.Time {
	var (
		parseErr     *transaction.ParseError
		ambiguousErr *classify.ClassificationAmbiguous
	)
	switch {
	case errors.As(err, &parseErr):
		return parseErr.Time
	case errors.As(err, &ambiguousErr):
		return ambiguousErr.Time
	}
	return time.Time{}
}

func (e *Engine) process(trx []*transaction.Transaction, pending map[int][]error, report *Report, opts Options) (*Report, error) {
	sorted := make([]*transaction.Transaction, len(trx))
	copy(sorted, trx)
	compare.Sort(sorted, transaction.Compare)

	var (
		byYear    = make(map[int][]*transaction.Transaction)
		dataYears = set.New[int]()
	)
	for _, t := range sorted {
		byYear[t.Year()] = append(byYear[t.Year()], t)
		dataYears.Add(t.Year())
	}
	for y := range pending {
		dataYears.Add(y)
	}
	requested := set.Of(opts.Years...)
	if len(requested) == 0 {
		requested = dataYears
	}
	if len(requested) == 0 {
		return report, nil
	}
	years := set.Of(append(dataYears.Slice(), requested.Slice()...)...).Sorted(compare.Ordered[int])
	last := requested.Sorted(compare.Ordered[int])[len(requested)-1]

	r := &run{
		Engine: e,
		opts:   opts,
		rates:  fx.Build(sorted, e.fallback),
		ledger: lots.New(),
	}
	e.logger.Debug("built FX table", zap.Int("days", r.rates.Len()), zap.Stringer("fallback", e.fallback))

	for y := years[0]; y <= last; y++ {
		s, err := r.processYear(y, byYear[y], pending[y])
		if err != nil {
			e.logger.Error("aborting run", zap.Int("year", y), zap.Error(err))
			return report, err
		}
		if !requested.Has(y) {
			continue
		}
		report.Years = append(report.Years, &YearResult{
			Year:    y,
			Summary: s,
			Card:    card.Analyze(y, byYear[y], s.NetCashbackEUR, e.cfg.Rate()),
		})
	}
	return report, nil
}

type run struct {
	*Engine
	opts   Options
	rates  *fx.Table
	ledger *lots.Ledger
}

func (r *run) processYear(year int, trx []*transaction.Transaction, errs []error) (*AnnualSummary, error) {
	s := &AnnualSummary{
		Year:               year,
		InterestByAsset:    make(map[string]decimal.Decimal),
		ExchangeBuyByAsset: make(map[string]decimal.Decimal),
		Errors:             append([]error(nil), errs...),
	}
	for _, t := range trx {
		err := r.apply(s, t)
		if err == nil {
			continue
		}
		te := &TransactionError{TxID: t.ID, Time: t.Time, Err: err}
		if r.opts.Strict || isFatal(err) {
			return nil, te
		}
		r.logger.Warn("skipping transaction", zap.String("id", t.ID), zap.Error(err))
		s.Errors = append(s.Errors, te)
	}
	r.finish(s)
	r.logger.Info("processed year",
		zap.Int("year", year),
		zap.Int("transactions", len(trx)),
		zap.Int("disposals", len(s.Disposals)),
		zap.String("capital_income_eur", s.CapitalIncomeEUR.StringFixed(2)),
		zap.String("gain_eur", s.GainEUR.StringFixed(2)),
		zap.Int("errors", len(s.Errors)))
	return s, nil
}

func isFatal(err error) bool {
	var (
		insufficient *lots.InsufficientLots
		noRate       *fx.NoRateAvailable
	)
	return errors.As(err, &insufficient) || errors.As(err, &noRate)
}

func (r *run) apply(s *AnnualSummary, t *transaction.Transaction) error {
	switch t.Kind {
	case transaction.Cashback:
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		if err := r.acquire(s, t, eur); err != nil {
			return err
		}
		s.CashbackCount++
		s.CashbackQuantity = s.CashbackQuantity.Add(t.OutputQuantity)
		s.CashbackEUR = s.CashbackEUR.Add(eur)

	case transaction.CashbackReversal:
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		s.ReversalCount++
		s.ReversalEUR = s.ReversalEUR.Add(eur)

	case transaction.Interest:
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		if err := r.acquire(s, t, eur); err != nil {
			return err
		}
		s.InterestCount++
		s.InterestByAsset[t.OutputAsset] = s.InterestByAsset[t.OutputAsset].Add(t.OutputQuantity)
		s.InterestEUR = s.InterestEUR.Add(eur)

	case transaction.ExchangeBuy:
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		if err := r.acquire(s, t, eur); err != nil {
			return err
		}
		s.ExchangeBuyCount++
		s.ExchangeBuyByAsset[t.OutputAsset] = s.ExchangeBuyByAsset[t.OutputAsset].Add(t.OutputQuantity)
		s.ExchangeBuyEUR = s.ExchangeBuyEUR.Add(eur)

	case transaction.ExchangeSell:
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		return r.dispose(s, t, eur)

	case transaction.CryptoSwap:
		// Both legs are checked before any lot is consumed.
		if t.OutputAsset == "" || !t.OutputQuantity.IsPositive() {
			return fmt.Errorf("swap of %s %s received %s %s: quantity must be positive", t.InputQuantity, t.InputAsset, t.OutputQuantity, t.OutputAsset)
		}
		eur, err := r.rates.Convert(t.ValueUSD, t.Time)
		if err != nil {
			return err
		}
		if err := r.dispose(s, t, eur); err != nil {
			return err
		}
		return r.acquire(s, t, eur)

	case transaction.Ignored:
		s.Unclassified = append(s.Unclassified, t)
	}
	return nil
}

func (r *run) acquire(s *AnnualSummary, t *transaction.Transaction, eur decimal.Decimal) error {
	if _, err := r.ledger.Acquire(t.OutputAsset, t.Time, t.OutputQuantity, eur, t.ID, t.Kind); err != nil {
		return err
	}
	if r.opts.Audit {
		s.Acquisitions = append(s.Acquisitions, &Acquisition{
			TxID:     t.ID,
			Time:     t.Time,
			Kind:     t.Kind,
			Asset:    t.OutputAsset,
			Quantity: t.OutputQuantity,
			ValueUSD: t.ValueUSD,
			CostEUR:  eur,

			Type:        t.Type,
			Description: t.Description,
		})
	}
	return nil
}

func (r *run) dispose(s *AnnualSummary, t *transaction.Transaction, proceeds decimal.Decimal) error {
	fee, err := r.feeEUR(t, proceeds)
	if err != nil {
		return err
	}
	c, err := r.ledger.Consume(t.InputAsset, t.Time, t.InputQuantity)
	if err != nil {
		return err
	}
	d := &Disposal{
		TxID:         t.ID,
		Time:         t.Time,
		Kind:         t.Kind,
		Asset:        t.InputAsset,
		Quantity:     t.InputQuantity,
		Description:  t.Description,
		ProceedsUSD:  t.ValueUSD,
		ProceedsEUR:  proceeds,
		FeeEUR:       fee,
		CostBasisEUR: c.Cost,
		GainEUR:      proceeds.Sub(fee).Sub(c.Cost),
	}
	if r.opts.Audit {
		d.Lots = c.Uses
	}
	s.Disposals = append(s.Disposals, d)
	return nil
}

// feeEUR values the fee of a disposal. Fees in assets other than USD, EUR
// or the disposed asset are not deducted.
func (r *run) feeEUR(t *transaction.Transaction, proceeds decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case !t.FeeQuantity.IsPositive():
		return decimal.Zero, nil
	case r.usd.Has(t.FeeAsset):
		return r.rates.Convert(t.FeeQuantity, t.Time)
	case r.eur.Has(t.FeeAsset):
		return t.FeeQuantity, nil
	case t.FeeAsset == t.InputAsset && t.InputQuantity.IsPositive():
		return proceeds.Mul(t.FeeQuantity).Div(t.InputQuantity), nil
	}
	r.logger.Debug("ignoring fee", zap.String("id", t.ID), zap.String("asset", t.FeeAsset), zap.Stringer("quantity", t.FeeQuantity))
	return decimal.Zero, nil
}

func (r *run) finish(s *AnnualSummary) {
	for _, d := range s.Disposals {
		s.ProceedsEUR = s.ProceedsEUR.Add(d.ProceedsEUR)
		s.FeesEUR = s.FeesEUR.Add(d.FeeEUR)
		s.CostBasisEUR = s.CostBasisEUR.Add(d.CostBasisEUR)
		s.GainEUR = s.GainEUR.Add(d.GainEUR)
		if d.GainEUR.IsPositive() {
			s.GainsEUR = s.GainsEUR.Add(d.GainEUR)
		} else {
			s.LossesEUR = s.LossesEUR.Sub(d.GainEUR)
		}
	}
	s.Exempt = len(s.Disposals) > 0 && s.ProceedsEUR.LessThanOrEqual(r.cfg.Limit())
	s.NetCashbackEUR = s.CashbackEUR.Sub(s.ReversalEUR)
	s.CapitalIncomeEUR = s.NetCashbackEUR.Add(s.InterestEUR)
	s.Remaining = r.ledger.RemainingByAsset()
	s.RemainingLots = r.ledger.Count()
	if r.opts.Audit {
		s.Lots = r.ledger.Snapshot()
	}
}
