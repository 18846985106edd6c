package portfolio

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/go-acb/acb/cdecimal"
	decimal_opt "github.com/go-acb/acb/decimal_value"
)

// maxSflDiscrepancy is the cent-level tolerance used when cross-checking
// a user-supplied superficial-loss figure against the calculated one
// (§9 "Numeric hazards" — rounding only at the presentation boundary,
// with this one documented exception).
var maxSflDiscrepancy = decimal.NewFromFloat(0.001)

func sflaMemo(pct decimal.Decimal, affSharesAtEop, buyingTotal, deniedShares, soldShares decimal.Decimal) string {
	return fmt.Sprintf(
		"Automatic SfL ACB adjustment. %s%% (%s/%s) of SfL, which was %s/%s of sale shares.",
		pct.StringFixed(2), affSharesAtEop.String(), buyingTotal.String(),
		deniedShares.String(), soldShares.String())
}

func txRateOrOne(rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.NewFromInt(1)
	}
	return rate
}

// AddTx computes the delta produced by txs[idx] against the current
// tracker state, per §4.4's per-transaction algorithm. It returns the
// delta, any synthetic Txs that must be spliced into the list immediately
// after idx (auto-generated SfLA compensations), and an error if the
// transaction is invalid given the prior state (oversell, RoC driving ACB
// negative, inconsistent user-specified SFL).
func AddTx(idx int, txs []*Tx, statuses *AffiliatePortfolioSecurityStatuses) (*TxDelta, []*Tx, error) {
	tx := txs[idx]
	af := NonNilTxAffiliate(tx)
	preStatus := statuses.NextPreStatus(af)
	fx := txRateOrOne(tx.TxCurrToLocalExchangeRate)
	commissionFx := txRateOrOne(tx.CommissionCurrToLocalExchangeRate)

	var postStatus *PortfolioSecurityStatus
	var capitalGain decimal_opt.DecimalOpt = decimal_opt.Null
	var sfl decimal_opt.DecimalOpt = decimal_opt.Null
	var sflRatio cdecimal.Ratio
	potentiallyOverApplied := false
	var extraTxs []*Tx

	switch tx.Action {
	case BUY:
		if !tx.Shares.IsPositive() {
			return nil, nil, fmt.Errorf("%s: Buy shares must be a positive value", tx.SettlementDate)
		}
		cost := tx.Shares.Mul(tx.AmountPerShare).Mul(fx).Add(tx.Commission.Mul(commissionFx))
		newTotalAcb := preStatus.TotalAcb.AddD(cost)
		newOwnShares := preStatus.ShareBalance.Decimal().Add(tx.Shares)
		newAllShares := preStatus.AllAffiliatesShareBalance.Decimal().Add(tx.Shares)
		postStatus = &PortfolioSecurityStatus{
			Security:                  tx.Security,
			ShareBalance:              cdecimal.RequireNonNegative(newOwnShares),
			AllAffiliatesShareBalance: cdecimal.RequireNonNegative(newAllShares),
			TotalAcb:                  newTotalAcb,
		}

	case SELL:
		if !tx.Shares.IsPositive() {
			return nil, nil, fmt.Errorf("%s: Sell shares must be a positive value", tx.SettlementDate)
		}
		if tx.Shares.GreaterThan(preStatus.ShareBalance.Decimal()) {
			return nil, nil, fmt.Errorf(
				"%s: sell of %s shares of %s is more than the current holdings (%s) for affiliate %s",
				tx.SettlementDate, tx.Shares, tx.Security, preStatus.ShareBalance, af.Id())
		}
		perShareAcb := preStatus.PerShareAcb()
		acbOfSold := perShareAcb.MulD(tx.Shares)
		newTotalAcb := preStatus.TotalAcb.Sub(acbOfSold)
		newOwnShares := preStatus.ShareBalance.Decimal().Sub(tx.Shares)
		newAllShares := preStatus.AllAffiliatesShareBalance.Decimal().Sub(tx.Shares)
		newOwnSharesNN := cdecimal.RequireNonNegative(newOwnShares)

		proceeds := tx.Shares.Mul(tx.AmountPerShare).Mul(fx).Sub(tx.Commission.Mul(commissionFx))

		if af.Registered() {
			capitalGain = decimal_opt.Null
		} else {
			capitalGain = decimal_opt.New(proceeds).Sub(acbOfSold)
		}

		if !af.Registered() && capitalGain.IsNegative() {
			arithLoss := capitalGain // negative

			if tx.SpecifiedSuperficialLoss.Present() {
				specified := tx.SpecifiedSuperficialLoss.MustGet()
				analysis := AnalyzeSuperficialLoss(idx, txs, statuses, cdecimal.RequirePositive(tx.Shares), newOwnSharesNN)
				calculatedDenied := decimal_opt.Zero
				if analysis.IsSuperficial {
					calculatedDenied = decimal_opt.New(arithLoss.Decimal.Mul(analysis.Ratio.Decimal()))
				}
				if !specified.SuperficialLoss.Decimal.Sub(calculatedDenied.Decimal).Abs().LessThanOrEqual(maxSflDiscrepancy) {
					if !specified.Force {
						return nil, nil, fmt.Errorf(
							"%s: specified superficial loss (%s) for %s difference with calculated value (%s) is greater than the max allowed discrepancy (%s). To force this SfL value, append an '!' to it",
							tx.SettlementDate, specified.SuperficialLoss, tx.Security, calculatedDenied, maxSflDiscrepancy)
					}
				}
				sfl = specified.SuperficialLoss
				capitalGain = arithLoss.Sub(sfl)
				if analysis.IsSuperficial {
					sflRatio = analysis.Ratio
				}
				// No synthetic SfLA Txs: the user is required to supply
				// their own, immediately following this Sell.
			} else {
				analysis := AnalyzeSuperficialLoss(idx, txs, statuses, cdecimal.RequirePositive(tx.Shares), newOwnSharesNN)
				if analysis.IsSuperficial {
					deniedAmt := arithLoss.Decimal.Mul(analysis.Ratio.Decimal())
					recognized := arithLoss.SubD(deniedAmt)
					capitalGain = recognized
					sfl = decimal_opt.New(deniedAmt)
					sflRatio = analysis.Ratio
					potentiallyOverApplied = analysis.PotentiallyOverApplied

					totalSflaAmount := deniedAmt.Neg() // positive
					ids := make([]string, 0, len(analysis.AllocationRatios))
					for id := range analysis.AllocationRatios {
						ids = append(ids, id)
					}
					sort.Strings(ids)
					deniedShares := cdecimal.RequirePositive(tx.Shares).Decimal().Mul(analysis.Ratio.Decimal())
					for _, id := range ids {
						allocRatio := analysis.AllocationRatios[id]
						amt := totalSflaAmount.Mul(allocRatio.Decimal())
						if !amt.IsPositive() {
							continue
						}
						sflaTx := &Tx{
							Security:                  tx.Security,
							TradeDate:                 tx.SettlementDate,
							SettlementDate:            tx.SettlementDate,
							Action:                    SFLA,
							Shares:                    decimal.NewFromInt(1),
							AmountPerShare:            amt,
							TxCurrency:                CAD,
							TxCurrToLocalExchangeRate: decimal.NewFromInt(1),
							Memo: sflaMemo(
								allocRatio.Decimal().Mul(decimal.NewFromInt(100)),
								allocRatio.Num.Decimal(), allocRatio.Denom.Decimal(),
								deniedShares, tx.Shares),
							Affiliate: GlobalAffiliateDedupTable.MustGet(id),
							ReadIndex: tx.ReadIndex,
						}
						extraTxs = append(extraTxs, sflaTx)
					}
				}
			}
		}

		postStatus = &PortfolioSecurityStatus{
			Security:                  tx.Security,
			ShareBalance:              newOwnSharesNN,
			AllAffiliatesShareBalance: cdecimal.RequireNonNegative(newAllShares),
			TotalAcb:                  newTotalAcb,
		}

	case ROC:
		if af.Registered() {
			return nil, nil, fmt.Errorf("%s: RoC is not valid for a registered affiliate", tx.SettlementDate)
		}
		if preStatus.ShareBalance.IsZero() {
			return nil, nil, fmt.Errorf("%s: RoC against a zero share balance for %s", tx.SettlementDate, tx.Security)
		}
		reduction := tx.AmountPerShare.Mul(preStatus.ShareBalance.Decimal()).Mul(fx)
		newAcbVal := preStatus.TotalAcb.Decimal.Sub(reduction)
		if newAcbVal.IsNegative() {
			return nil, nil, fmt.Errorf(
				"%s: RoC of %s against %s would drive ACB negative (%s)",
				tx.SettlementDate, tx.AmountPerShare, tx.Security, newAcbVal)
		}
		postStatus = &PortfolioSecurityStatus{
			Security:                  tx.Security,
			ShareBalance:              preStatus.ShareBalance,
			AllAffiliatesShareBalance: preStatus.AllAffiliatesShareBalance,
			TotalAcb:                  decimal_opt.New(newAcbVal),
		}

	case SFLA:
		if tx.TxCurrency != DEFAULT_CURRENCY && tx.TxCurrency != CAD {
			return nil, nil, fmt.Errorf("%s: SfLA must be in CAD", tx.SettlementDate)
		}
		if !txRateOrOne(tx.TxCurrToLocalExchangeRate).Equal(decimal.NewFromInt(1)) {
			return nil, nil, fmt.Errorf("%s: SfLA exchange rate must be 1", tx.SettlementDate)
		}
		if !tx.Shares.Mul(tx.AmountPerShare).IsPositive() {
			return nil, nil, fmt.Errorf("%s: SfLA amount must be positive", tx.SettlementDate)
		}
		amt := tx.Shares.Mul(tx.AmountPerShare)
		postStatus = &PortfolioSecurityStatus{
			Security:                  tx.Security,
			ShareBalance:              preStatus.ShareBalance,
			AllAffiliatesShareBalance: preStatus.AllAffiliatesShareBalance,
			TotalAcb:                  preStatus.TotalAcb.AddD(amt),
		}

	case SPLIT:
		if tx.SplitRatioNum.IsZero() || tx.SplitRatioDenom.IsZero() {
			return nil, nil, fmt.Errorf("%s: invalid split ratio for %s", tx.SettlementDate, tx.Security)
		}
		newOwnShares := preStatus.ShareBalance.Decimal().Mul(tx.SplitRatioNum).Div(tx.SplitRatioDenom)
		newAllShares := preStatus.AllAffiliatesShareBalance.Decimal().
			Sub(preStatus.ShareBalance.Decimal()).Add(newOwnShares)
		postStatus = &PortfolioSecurityStatus{
			Security:                  tx.Security,
			ShareBalance:              cdecimal.RequireNonNegative(newOwnShares),
			AllAffiliatesShareBalance: cdecimal.RequireNonNegative(newAllShares),
			TotalAcb:                  preStatus.TotalAcb,
		}

	case DIVIDEND:
		postStatus = preStatus

	default:
		return nil, nil, fmt.Errorf("%s: unsupported action %v", tx.SettlementDate, tx.Action)
	}

	if err := statuses.SetLatestPostStatus(af, postStatus); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", tx.SettlementDate, err)
	}

	delta := &TxDelta{
		Tx:                        tx,
		PreStatus:                 preStatus,
		PostStatus:                postStatus,
		CapitalGain:               capitalGain,
		SuperficialLoss:           sfl,
		SuperficialLossRatio:      sflRatio,
		PotentiallyOverAppliedSfl: potentiallyOverApplied,
	}
	return delta, extraTxs, nil
}

// TxsToDeltaList walks sorted, single-security txs through AddTx,
// splicing in auto-generated SfLA transactions immediately after the
// Sell that produced them, per §4.4 step 3. On error it returns the
// partial delta list produced so far alongside the error (§7:
// invariant violations abort only the offending security).
func TxsToDeltaList(
	txs []*Tx, initialStatus *PortfolioSecurityStatus) ([]*TxDelta, []*Tx, error) {

	if len(txs) == 0 {
		return nil, nil, nil
	}

	statuses := NewAffiliatePortfolioSecurityStatuses(txs[0].Security, initialStatus)
	activeTxs := make([]*Tx, len(txs))
	copy(activeTxs, txs)

	var deltas []*TxDelta
	for i := 0; i < len(activeTxs); i++ {
		delta, newTxs, err := AddTx(i, activeTxs, statuses)
		if err != nil {
			return deltas, activeTxs, err
		}
		deltas = append(deltas, delta)
		if len(newTxs) > 0 {
			rest := make([]*Tx, 0, len(activeTxs)-i-1+len(newTxs))
			rest = append(rest, newTxs...)
			rest = append(rest, activeTxs[i+1:]...)
			activeTxs = append(activeTxs[:i+1], rest...)
		}
	}
	return deltas, activeTxs, nil
}

// SplitTxsBySecurity groups txs by Security, preserving relative order.
func SplitTxsBySecurity(txs []*Tx) map[string][]*Tx {
	bySec := make(map[string][]*Tx)
	for _, tx := range txs {
		bySec[tx.Security] = append(bySec[tx.Security], tx)
	}
	return bySec
}
