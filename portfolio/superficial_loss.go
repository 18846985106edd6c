package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/go-acb/acb/cdecimal"
	"github.com/go-acb/acb/date"
	"github.com/go-acb/acb/util"
)

// GetFirstDayInSuperficialLossPeriod and GetLastDayInSuperficialLossPeriod
// give the inclusive 30-day boundaries of the superficial-loss window for
// a sell settled on txDate (§4.5).
func GetFirstDayInSuperficialLossPeriod(txDate date.Date) date.Date {
	return txDate.AddDays(-30)
}

func GetLastDayInSuperficialLossPeriod(txDate date.Date) date.Date {
	return txDate.AddDays(30)
}

// SuperficialLossAnalysis is the result of analyzing one Sell for
// superficiality, per §4.5.
type SuperficialLossAnalysis struct {
	IsSuperficial bool
	// Ratio of the sale that is denied. Only meaningful if IsSuperficial.
	Ratio cdecimal.Ratio
	// Per-affiliate allocation ratios for the compensating SfLA, keyed by
	// affiliate id, summing to 1. Only populated if IsSuperficial.
	AllocationRatios       map[string]cdecimal.Ratio
	PotentiallyOverApplied bool
}

// affiliateBalanceTracker lazily seeds each affiliate's starting share
// balance from the portfolio status tracker the first time it's touched,
// then accumulates forward-window Buy/Sell deltas against it.
type affiliateBalanceTracker struct {
	statuses         *AffiliatePortfolioSecurityStatuses
	balances         map[string]decimal.Decimal
	overrideBalances map[string]decimal.Decimal
}

func newAffiliateBalanceTracker(statuses *AffiliatePortfolioSecurityStatuses) *affiliateBalanceTracker {
	return &affiliateBalanceTracker{
		statuses:         statuses,
		balances:         make(map[string]decimal.Decimal),
		overrideBalances: make(map[string]decimal.Decimal),
	}
}

// setOverride fixes a starting balance for an affiliate (used for the
// selling affiliate, whose post-sell balance hasn't been committed to the
// tracker yet when the analyzer runs).
func (t *affiliateBalanceTracker) setOverride(afId string, bal decimal.Decimal) {
	t.overrideBalances[afId] = bal
}

func (t *affiliateBalanceTracker) get(af *Affiliate) decimal.Decimal {
	if bal, ok := t.balances[af.Id()]; ok {
		return bal
	}
	if bal, ok := t.overrideBalances[af.Id()]; ok {
		t.balances[af.Id()] = bal
		return bal
	}
	bal := t.statuses.GetLatestPostStatusForAffiliate(af).ShareBalance.Decimal()
	t.balances[af.Id()] = bal
	return bal
}

func (t *affiliateBalanceTracker) apply(af *Affiliate, delta decimal.Decimal) {
	t.balances[af.Id()] = t.get(af).Add(delta)
}

// AnalyzeSuperficialLoss implements §4.5. idx is the index of a Sell
// transaction within txs (sorted, single security) whose capital gain is
// negative. sellerPostSaleBalance is the selling affiliate's share
// balance immediately after this sell (not yet committed to statuses).
func AnalyzeSuperficialLoss(
	idx int, txs []*Tx, statuses *AffiliatePortfolioSecurityStatuses,
	sharesSold cdecimal.Positive, sellerPostSaleBalance cdecimal.NonNegative) *SuperficialLossAnalysis {

	sellTx := txs[idx]
	firstDay := GetFirstDayInSuperficialLossPeriod(sellTx.SettlementDate)
	lastDay := GetLastDayInSuperficialLossPeriod(sellTx.SettlementDate)

	tracker := newAffiliateBalanceTracker(statuses)
	tracker.setOverride(NonNilTxAffiliate(sellTx).Id(), sellerPostSaleBalance.Decimal())

	totalAcquired := decimal.Zero
	buyingAffiliates := util.NewSet[string]()

	didBuyBefore := false
	for i := idx - 1; i >= 0; i-- {
		tx := txs[i]
		if tx.SettlementDate.Before(firstDay) {
			break
		}
		if tx.Action == BUY {
			didBuyBefore = true
			totalAcquired = totalAcquired.Add(tx.Shares)
			buyingAffiliates.Add(NonNilTxAffiliate(tx).Id())
		}
	}

	for i := idx + 1; i < len(txs); i++ {
		tx := txs[i]
		if tx.SettlementDate.After(lastDay) {
			break
		}
		af := NonNilTxAffiliate(tx)
		switch tx.Action {
		case BUY:
			tracker.apply(af, tx.Shares)
			totalAcquired = totalAcquired.Add(tx.Shares)
			buyingAffiliates.Add(af.Id())
		case SELL:
			tracker.apply(af, tx.Shares.Neg())
		}
	}

	allAffEop := decimal.Zero
	affShareBalAtEop := make(map[string]decimal.Decimal)
	touched := util.NewSet[string]()
	touched.Add(NonNilTxAffiliate(sellTx).Id())
	buyingAffiliates.ForEach(func(id string) { touched.Add(id) })
	touched.ForEach(func(id string) {
		af := GlobalAffiliateDedupTable.MustGet(id)
		bal := tracker.get(af)
		allAffEop = allAffEop.Add(bal)
		affShareBalAtEop[id] = bal
	})

	isSuperficial := (totalAcquired.IsPositive() || didBuyBefore) && allAffEop.IsPositive()
	if !isSuperficial {
		return &SuperficialLossAnalysis{IsSuperficial: false}
	}

	minShares := sharesSold.Decimal()
	if totalAcquired.LessThan(minShares) {
		minShares = totalAcquired
	}
	if allAffEop.LessThan(minShares) {
		minShares = allAffEop
	}
	if !minShares.IsPositive() {
		// Degenerate: nothing to actually attribute the loss to.
		return &SuperficialLossAnalysis{IsSuperficial: false}
	}

	ratioNum := cdecimal.RequirePositive(minShares)
	ratio := cdecimal.NewRatio(ratioNum, sharesSold)

	deniedShares := minShares

	allocationRatios := make(map[string]cdecimal.Ratio)
	buyingTotal := decimal.Zero
	buyingAffiliates.ForEach(func(id string) {
		buyingTotal = buyingTotal.Add(affShareBalAtEop[id])
	})

	potentiallyOverApplied := false
	if buyingAffiliates.Len() == 0 || !buyingTotal.IsPositive() {
		// Every buyer (forward or backward) already sold their shares back
		// out of the window, leaving nothing with a positive end-of-window
		// balance to allocate to; attribute the whole adjustment to the
		// seller, and flag it for review.
		sellerId := NonNilTxAffiliate(sellTx).Id()
		one := cdecimal.RequirePositive(decimal.NewFromInt(1))
		allocationRatios[sellerId] = cdecimal.NewRatio(one, one)
		potentiallyOverApplied = true
	} else {
		buyingAffiliates.ForEach(func(id string) {
			share := affShareBalAtEop[id]
			if !share.IsPositive() {
				return
			}
			allocationRatios[id] = cdecimal.NewRatio(cdecimal.RequirePositive(share), cdecimal.RequirePositive(buyingTotal))
		})
		if buyingTotal.LessThan(deniedShares) {
			potentiallyOverApplied = true
		}
	}

	return &SuperficialLossAnalysis{
		IsSuperficial:          true,
		Ratio:                  ratio,
		AllocationRatios:       allocationRatios,
		PotentiallyOverApplied: potentiallyOverApplied,
	}
}
