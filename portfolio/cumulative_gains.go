package portfolio

import (
	"sort"

	decimal_opt "github.com/go-acb/acb/decimal_value"
	"github.com/go-acb/acb/util"
)

// CumulativeCapitalGains aggregates the recognized capital gains across a
// set of deltas, both overall and per calendar year of settlement date.
type CumulativeCapitalGains struct {
	CapitalGainsTotal      decimal_opt.DecimalOpt
	CapitalGainsYearTotals map[int]decimal_opt.DecimalOpt
}

func (g *CumulativeCapitalGains) CapitalGainsYearTotalsKeysSorted() []int {
	years := util.MapKeys(g.CapitalGainsYearTotals)
	sort.Ints(years)
	return years
}

// CalcSecurityCumulativeCapitalGains sums the (non-null) capital gains of
// one security's deltas, which excludes registered-affiliate activity
// (always null) and non-Sell actions (also null).
func CalcSecurityCumulativeCapitalGains(deltas []*TxDelta) *CumulativeCapitalGains {
	capGainsTotal := decimal_opt.Zero
	capGainsYearTotals := util.NewDefaultMap[int, decimal_opt.DecimalOpt](func(int) decimal_opt.DecimalOpt { return decimal_opt.Zero })

	for _, d := range deltas {
		if d.CapitalGain.IsNull {
			continue
		}
		capGainsTotal = capGainsTotal.Add(d.CapitalGain)
		year := d.Tx.SettlementDate.Year()
		capGainsYearTotals.Set(year, capGainsYearTotals.Get(year).Add(d.CapitalGain))
	}

	return &CumulativeCapitalGains{capGainsTotal, capGainsYearTotals.EjectMap()}
}

// CalcCumulativeCapitalGains merges per-security gain totals into a single
// portfolio-wide total, overall and per year.
func CalcCumulativeCapitalGains(secGains map[string]*CumulativeCapitalGains) *CumulativeCapitalGains {
	capGainsTotal := decimal_opt.Zero
	capGainsYearTotals := util.NewDefaultMap[int, decimal_opt.DecimalOpt](func(int) decimal_opt.DecimalOpt { return decimal_opt.Zero })

	for _, gains := range secGains {
		capGainsTotal = capGainsTotal.Add(gains.CapitalGainsTotal)
		for year, yearGains := range gains.CapitalGainsYearTotals {
			capGainsYearTotals.Set(year, capGainsYearTotals.Get(year).Add(yearGains))
		}
	}

	return &CumulativeCapitalGains{capGainsTotal, capGainsYearTotals.EjectMap()}
}
