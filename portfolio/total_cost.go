package portfolio

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/go-acb/acb/date"
)

// maxSingleDayCosts tracks the max cost (ACB) of every held security on a
// particular settlement day, as well as the total across all securities on
// that day.
type maxSingleDayCosts struct {
	day              date.Date
	total            decimal.Decimal
	secMaxCostForDay map[string]decimal.Decimal
}

func newMaxSingleDayCosts(d date.Date) *maxSingleDayCosts {
	return &maxSingleDayCosts{day: d, total: decimal.Zero, secMaxCostForDay: make(map[string]decimal.Decimal)}
}

func (c *maxSingleDayCosts) observeNewCost(sec string, newCost decimal.Decimal) {
	oldDayMaxCost, ok := c.secMaxCostForDay[sec]
	if !ok {
		oldDayMaxCost = decimal.Zero
	}
	curDayMaxCost := oldDayMaxCost
	if newCost.GreaterThan(curDayMaxCost) {
		curDayMaxCost = newCost
	}
	c.secMaxCostForDay[sec] = curDayMaxCost
	c.total = c.total.Sub(oldDayMaxCost).Add(curDayMaxCost)
}

type maxDayCosts struct {
	maxCostsByDay     map[date.Date]*maxSingleDayCosts
	securitySet       map[string]bool
	ignoredDeltaDescs []string
}

// calcMaxDayCostPerSec walks all_deltas and produces a maxSingleDayCosts for
// every settlement day on which a delta occurred. Each day's
// secMaxCostForDay carries an entry for every security held as of that day,
// carrying forward the last known cost for securities with no activity that
// day.
//
// Deltas need not be pre-sorted between securities, but deltas for the same
// security must be in chronological (settlement date) order.
func calcMaxDayCostPerSec(allDeltas []*TxDelta) *maxDayCosts {
	maxCostsByDay := make(map[date.Date]*maxSingleDayCosts)
	daySecStartCosts := make(map[string]decimal.Decimal)
	securitySet := make(map[string]bool)
	var ignoredDeltaDescs []string

	for _, d := range allDeltas {
		settleDate := d.Tx.SettlementDate
		sec := d.PostStatus.Security

		if d.PostStatus.TotalAcb.IsNull {
			ignoredDeltaDescs = append(ignoredDeltaDescs, fmt.Sprintf(
				"%s (%s) ignored transaction from registered affiliate", settleDate, sec))
			continue
		}
		if !NonNilTxAffiliate(d.Tx).Default() {
			ignoredDeltaDescs = append(ignoredDeltaDescs, fmt.Sprintf(
				"%s (%s) ignored transaction from non-default affiliate %s",
				settleDate, sec, NonNilTxAffiliate(d.Tx).Name()))
			continue
		}

		securitySet[sec] = true

		dayMaxCosts, ok := maxCostsByDay[settleDate]
		if !ok {
			dayMaxCosts = newMaxSingleDayCosts(settleDate)
			maxCostsByDay[settleDate] = dayMaxCosts
		}
		dayMaxCosts.observeNewCost(sec, d.PostStatus.TotalAcb.Decimal)

		if _, ok := daySecStartCosts[sec]; !ok {
			startAcb := decimal.Zero
			if d.PreStatus != nil && !d.PreStatus.TotalAcb.IsNull {
				startAcb = d.PreStatus.TotalAcb.Decimal
			}
			daySecStartCosts[sec] = startAcb
		}
	}

	var sortedDays []date.Date
	for day := range maxCostsByDay {
		sortedDays = append(sortedDays, day)
	}
	sort.Slice(sortedDays, func(i, j int) bool { return sortedDays[i].Before(sortedDays[j]) })

	lastAcbs := make(map[string]decimal.Decimal)
	for _, day := range sortedDays {
		maxCosts := maxCostsByDay[day]
		for sec := range securitySet {
			lastAcb, ok := maxCosts.secMaxCostForDay[sec]
			if !ok {
				lastAcb, ok = lastAcbs[sec]
				if !ok {
					lastAcb = daySecStartCosts[sec]
				}
			}
			lastAcbs[sec] = lastAcb
			if _, ok := maxCosts.secMaxCostForDay[sec]; !ok {
				maxCosts.observeNewCost(sec, lastAcb)
			}
		}
	}

	return &maxDayCosts{maxCostsByDay: maxCostsByDay, securitySet: securitySet, ignoredDeltaDescs: ignoredDeltaDescs}
}

func calcYearlyMaxCostDay(m *maxDayCosts) map[int]*maxSingleDayCosts {
	maxCostDayForYear := make(map[int]date.Date)
	for day, dayCost := range m.maxCostsByDay {
		oldDate, ok := maxCostDayForYear[day.Year()]
		if !ok {
			maxCostDayForYear[day.Year()] = day
			continue
		}
		oldDateCost := m.maxCostsByDay[oldDate]
		if oldDateCost.total.LessThan(dayCost.total) {
			maxCostDayForYear[day.Year()] = day
		}
	}

	maxCostsForYear := make(map[int]*maxSingleDayCosts)
	for year, day := range maxCostDayForYear {
		maxCostsForYear[year] = m.maxCostsByDay[day]
	}
	return maxCostsForYear
}

// CostsTables is the rendered total-cost report: a day-by-day view of the
// portfolio's maximum combined cost across all default-affiliate securities,
// plus the single highest day in each calendar year. Per CRA guidance, the
// total cost amount used to determine T1135 foreign-property reporting
// obligations is the highest cost incurred over the year, not the year-end
// balance.
type CostsTables struct {
	Total  *RenderTable
	Yearly *RenderTable
}

func sortedSecurities(securitySet map[string]bool) []string {
	secs := make([]string, 0, len(securitySet))
	for sec := range securitySet {
		secs = append(secs, sec)
	}
	sort.Strings(secs)
	return secs
}

func costsRow(prefix []string, c *maxSingleDayCosts, secs []string, ph _PrintHelper) []string {
	row := append(append([]string{}, prefix...), ph.CurrStr(c.total))
	for _, sec := range secs {
		cost, ok := c.secMaxCostForDay[sec]
		if !ok {
			cost = decimal.Zero
		}
		row = append(row, ph.CurrStr(cost))
	}
	return row
}

// RenderTotalCosts computes the day-by-day and yearly-max total cost tables
// described in CostsTables, from the full list of deltas across all
// securities. Deltas for different securities may be interlaced, but deltas
// for the same security must be in settlement-date order.
func RenderTotalCosts(allDeltas []*TxDelta, renderFullDollarValues bool) *CostsTables {
	ph := _PrintHelper{PrintAllDecimals: renderFullDollarValues}

	dayCosts := calcMaxDayCostPerSec(allDeltas)
	yearCosts := calcYearlyMaxCostDay(dayCosts)
	secs := sortedSecurities(dayCosts.securitySet)

	var sortedDays []date.Date
	for day := range dayCosts.maxCostsByDay {
		sortedDays = append(sortedDays, day)
	}
	sort.Slice(sortedDays, func(i, j int) bool { return sortedDays[i].Before(sortedDays[j]) })

	total := &RenderTable{Header: append([]string{"Date", "Total"}, secs...)}
	for _, day := range sortedDays {
		c := dayCosts.maxCostsByDay[day]
		total.Rows = append(total.Rows, costsRow([]string{day.String()}, c, secs, ph))
	}
	total.Notes = dayCosts.ignoredDeltaDescs

	var years []int
	for year := range yearCosts {
		years = append(years, year)
	}
	sort.Ints(years)

	yearly := &RenderTable{Header: append([]string{"Year", "Date", "Total"}, secs...)}
	for _, year := range years {
		c := yearCosts[year]
		yearly.Rows = append(yearly.Rows, costsRow([]string{fmt.Sprintf("%d", year), c.day.String()}, c, secs, ph))
	}
	yearly.Notes = dayCosts.ignoredDeltaDescs

	return &CostsTables{Total: total, Yearly: yearly}
}
