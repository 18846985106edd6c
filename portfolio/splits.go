package portfolio

import (
	"fmt"
	"sort"

	"github.com/go-acb/acb/util"
)

// hasNonGlobalSurroundingSplit reports whether txs[idx] (assumed to be a
// global Split) has any *non-global* Split on the same security within a
// one-day window on either side — the signal the source uses to catch a
// user accidentally double-entering a split both generically (against the
// global affiliate) and again explicitly for one affiliate.
func hasNonGlobalSurroundingSplit(txs []*Tx, idx int) bool {
	target := txs[idx]
	isNearby := func(other *Tx) bool {
		diff := target.SettlementDate.UTCTime().Sub(other.SettlementDate.UTCTime())
		if diff < 0 {
			diff = -diff
		}
		return diff.Hours() <= 24
	}
	for i := idx - 1; i >= 0; i-- {
		if !isNearby(txs[i]) {
			break
		}
		if txs[i].Action == SPLIT && !txs[i].Affiliate.IsGlobal() {
			return true
		}
	}
	for i := idx + 1; i < len(txs); i++ {
		if !isNearby(txs[i]) {
			break
		}
		if txs[i].Action == SPLIT && !txs[i].Affiliate.IsGlobal() {
			return true
		}
	}
	return false
}

// ExpandGlobalSplits replaces every Split against the global affiliate
// with one Split per non-global affiliate already present in this
// security's transaction list (or a single Split against the default
// affiliate if none is present), per §4.4's preprocessing step. txs must
// already be sorted and must all be for one security.
func ExpandGlobalSplits(txs []*Tx) ([]*Tx, error) {
	affiliates := util.NewSet[string]()
	for _, tx := range txs {
		if tx.Affiliate != nil && !tx.Affiliate.IsGlobal() {
			affiliates.Add(tx.Affiliate.Id())
		}
	}

	// Walk in reverse so that inserting replacement Txs at an index doesn't
	// invalidate the indices of global splits we haven't processed yet.
	out := make([]*Tx, len(txs))
	copy(out, txs)
	for i := len(out) - 1; i >= 0; i-- {
		tx := out[i]
		if tx.Action != SPLIT || tx.Affiliate == nil || !tx.Affiliate.IsGlobal() {
			continue
		}
		if hasNonGlobalSurroundingSplit(out, i) {
			return nil, fmt.Errorf(
				"%s: global split on %s is within 1 day of another explicit split on the same security; remove one",
				tx.SettlementDate, tx.Security)
		}

		var targetIds []string
		if affiliates.Len() > 0 {
			targetIds = affiliates.ToSlice()
			sort.Strings(targetIds)
		} else {
			targetIds = []string{GlobalAffiliateDedupTable.GetDefaultAffiliate().Id()}
		}

		replacements := make([]*Tx, 0, len(targetIds))
		for _, id := range targetIds {
			af := GlobalAffiliateDedupTable.MustGet(id)
			replacement := *tx
			replacement.Affiliate = af
			replacements = append(replacements, &replacement)
		}

		newOut := make([]*Tx, 0, len(out)+len(replacements)-1)
		newOut = append(newOut, out[:i]...)
		newOut = append(newOut, replacements...)
		newOut = append(newOut, out[i+1:]...)
		out = newOut
	}

	return SortTxs(out), nil
}
