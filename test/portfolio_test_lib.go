package test

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-acb/acb/cdecimal"
	"github.com/go-acb/acb/date"
	decimal_opt "github.com/go-acb/acb/decimal_value"
	ptf "github.com/go-acb/acb/portfolio"
	"github.com/go-acb/acb/util"
)

const DefaultTestSecurity string = "FOO"

func mkDateYD(year uint32, day int) date.Date {
	tm := date.New(year, time.January, 1)
	return tm.AddDays(day)
}

func mkDate(day int) date.Date {
	return mkDateYD(2017, day)
}

func CADSFL(lossVal float64, force bool) ptf.SFLInputOpt {
	util.Assert(lossVal <= 0.0)
	return ptf.NewSFLInputOpt(ptf.SFLInput{
		SuperficialLoss: decimal_opt.NewFromFloat(lossVal),
		Force:           force,
	})
}

// DInt, DFlt and DStr are convenience wrappers for building TTx/summary-DSL
// numeric fields from an int, a float, or a decimal string, respectively.
// They all collapse to float64 since every test DSL struct in this package
// expands its numeric fields to decimal.Decimal only inside its X() method.
func DInt(n int) float64 { return float64(n) }

func DFlt(f float64) float64 { return f }

func DStr(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(err)
	}
	return f
}

// addTx builds a standalone delta for tx, seeding a prior status for its
// affiliate and a dummy affiliate so the aggregate share balance invariant
// that NewAffiliatePortfolioSecurityStatuses checks doesn't trip.
func addTx(tx *ptf.Tx, preTxStatus *ptf.PortfolioSecurityStatus) (*ptf.TxDelta, []*ptf.Tx, error) {
	txs := []*ptf.Tx{tx}
	affil := ptf.NonNilTxAffiliate(tx)
	ptfStatuses := ptf.NewAffiliatePortfolioSecurityStatuses(tx.Security, nil)

	shareDiff := cdecimal.RequireNonNegative(
		preTxStatus.AllAffiliatesShareBalance.Decimal().Sub(preTxStatus.ShareBalance.Decimal()))
	dummyStatus := &ptf.PortfolioSecurityStatus{
		Security:                  tx.Security,
		ShareBalance:              shareDiff,
		AllAffiliatesShareBalance: shareDiff,
		TotalAcb:                  decimal_opt.Zero,
	}

	dummyAffiliate := ptf.GlobalAffiliateDedupTable.DedupedAffiliate("dummy")
	if err := ptfStatuses.SetLatestPostStatus(dummyAffiliate, dummyStatus); err != nil {
		panic(err)
	}
	if err := ptfStatuses.SetLatestPostStatus(affil, preTxStatus); err != nil {
		panic(err)
	}
	return ptf.AddTx(0, txs, ptfStatuses)
}

func AddTxNoErr(t *testing.T, tx *ptf.Tx, preTxStatus *ptf.PortfolioSecurityStatus) *ptf.TxDelta {
	delta, _, err := addTx(tx, preTxStatus)
	require.NoError(t, err)
	return delta
}

func AddTxWithErr(t *testing.T, tx *ptf.Tx, preTxStatus *ptf.PortfolioSecurityStatus) {
	_, _, err := addTx(tx, preTxStatus)
	require.Error(t, err)
}

func TxsToDeltaListNoErr(t *testing.T, txs []*ptf.Tx, initialStatus *ptf.PortfolioSecurityStatus) []*ptf.TxDelta {
	deltas, _, err := ptf.TxsToDeltaList(txs, initialStatus)
	require.NoError(t, err)
	return deltas
}

func TxsToDeltaListWithErr(t *testing.T, txs []*ptf.Tx, initialStatus *ptf.PortfolioSecurityStatus) {
	_, _, err := ptf.TxsToDeltaList(txs, initialStatus)
	require.Error(t, err)
}

// **********************************************************************************
// Test Types/Models
// **********************************************************************************

// Using DEFAULT_CURRENCY in TTx will just result in CAD.
// If testing actual DEFAULT_CURRENCY, use this.
const EXP_DEFAULT_CURRENCY ptf.Currency = "EXPLICIT_TEST_DEFAULT_CURRENCY"
const EXP_FLOAT_ZERO = -0.01010101

// Test Tx
type TTx struct {
	Sec        string
	TDay       int       // An abitrarily offset day. Convenience for TDate
	TDate      date.Date // Defaults to 2 days before SDate
	SYr        uint32    // Year. Convenience for SDate. Must be combined with SDoY
	SDoY       int       // Day of Year. Convenience for SDate. Must be combined with SYr
	SDate      date.Date // Defaults to 2 days after TDate/TDay
	Act        ptf.TxAction
	Shares     float64
	Price      float64
	Comm       float64
	Curr       ptf.Currency
	FxRate     float64
	CommCurr   ptf.Currency
	CommFxRate float64
	Memo       string
	Affiliate  *ptf.Affiliate
	AffName    string
	SFL        ptf.SFLInputOpt
	ReadIndex  uint32
}

// eXpand to full type.
func (t TTx) X() *ptf.Tx {
	getFxRate := func(rateArg float64, def float64) float64 {
		if rateArg == 0.0 {
			return def
		} else if rateArg == EXP_FLOAT_ZERO {
			return 0.0
		}
		return rateArg
	}
	fxRate := getFxRate(t.FxRate, 1.0)
	affiliate := t.Affiliate
	if affiliate == nil {
		affiliate = ptf.GlobalAffiliateDedupTable.DedupedAffiliate(t.AffName)
	} else {
		util.Assert(t.AffName == "")
	}

	// Dates
	tradeDate := util.Tern(t.TDay != 0, mkDate(t.TDay), t.TDate)
	if t.TDay != 0 {
		util.Assert(t.TDate == date.Date{})
	}
	settlementDate := util.Tern(t.SYr != 0, mkDateYD(t.SYr, t.SDoY), t.SDate)
	if t.SYr != 0 || t.SDoY != 0 {
		util.Assert(t.SDate == date.Date{})
	}
	if (settlementDate == date.Date{}) && (tradeDate != date.Date{}) {
		settlementDate = tradeDate.AddDays(2)
	} else if (tradeDate == date.Date{}) && (settlementDate != date.Date{}) {
		tradeDate = settlementDate.AddDays(-2)
	}

	getCurr := func(specifiedCurr ptf.Currency, default_ ptf.Currency) ptf.Currency {
		curr := specifiedCurr
		if curr == "" {
			util.Assert(curr == ptf.DEFAULT_CURRENCY)
			curr = default_
		} else if curr == EXP_DEFAULT_CURRENCY {
			curr = ptf.DEFAULT_CURRENCY
		}
		return curr
	}
	curr := getCurr(t.Curr, ptf.CAD)
	commCurr := getCurr(t.CommCurr, curr)

	return &ptf.Tx{
		Security:                          util.Tern(t.Sec == "", DefaultTestSecurity, t.Sec),
		TradeDate:                         tradeDate,
		SettlementDate:                    settlementDate,
		Action:                            t.Act,
		Shares:                            decimal.NewFromFloat(t.Shares),
		AmountPerShare:                    decimal.NewFromFloat(t.Price),
		Commission:                        decimal.NewFromFloat(t.Comm),
		TxCurrency:                        curr,
		TxCurrToLocalExchangeRate:         decimal.NewFromFloat(fxRate),
		CommissionCurrency:                commCurr,
		CommissionCurrToLocalExchangeRate: decimal.NewFromFloat(getFxRate(t.CommFxRate, fxRate)),
		Memo:                              t.Memo,
		Affiliate:                         affiliate,

		SpecifiedSuperficialLoss: t.SFL,

		ReadIndex: t.ReadIndex,
	}
}

// Test PortfolioSecurityStatus
type TPSS struct {
	Sec       string
	Shares    float64
	AllShares float64
	TotalAcb  float64 // Use NaN for a null (registered-account) ACB.
	AcbPerSh  float64
}

// eXpand to full type.
func (o TPSS) X() *ptf.PortfolioSecurityStatus {
	util.Assert(!(o.TotalAcb != 0.0 && o.AcbPerSh != 0.0))

	shares := cdecimal.RequireNonNegative(decimal.NewFromFloat(o.Shares))
	allShares := cdecimal.RequireNonNegative(
		decimal.NewFromFloat(util.Tern(o.AllShares > 0, o.AllShares, o.Shares)))

	var totalAcb decimal_opt.DecimalOpt
	switch {
	case math.IsNaN(o.TotalAcb) || math.IsNaN(o.AcbPerSh):
		totalAcb = decimal_opt.Null
	case o.AcbPerSh != 0.0:
		totalAcb = decimal_opt.NewFromFloat(o.AcbPerSh * o.Shares)
	default:
		totalAcb = decimal_opt.NewFromFloat(o.TotalAcb)
	}

	return &ptf.PortfolioSecurityStatus{
		Security:                  util.Tern(o.Sec == "", DefaultTestSecurity, o.Sec),
		ShareBalance:              shares,
		AllAffiliatesShareBalance: allShares,
		TotalAcb:                  totalAcb,
	}
}

// Test Delta
type TDt struct {
	PostSt                    TPSS
	Gain                      float64 // Use NaN for a null (registered-account) gain.
	SFL                       float64
	PotentiallyOverAppliedSfl bool
}

// **********************************************************************************
// Validation functions
// **********************************************************************************

const matchingMemoPrefix string = "TEST_MEMO_MATCHES:"

func matchingMemo(pattern string) string {
	return matchingMemoPrefix + pattern
}

func decAlmostEqual(exp decimal.Decimal, actual decimal.Decimal) bool {
	if exp.Equal(actual) {
		return true
	}
	return IsAlmostEqual(exp.InexactFloat64(), actual.InexactFloat64())
}

// softAlmostEqualDecOpt compares a (possibly NaN-as-null) expected float64
// against an actual DecimalOpt, allowing small rounding fuzz the same way
// SoftAlmostEqual does for plain floats.
func softAlmostEqualDecOpt(t *testing.T, exp float64, actual decimal_opt.DecimalOpt) bool {
	if math.IsNaN(exp) {
		return assert.Truef(t, actual.IsNull, "expected null, got %s", actual.String())
	}
	if actual.IsNull {
		return assert.Falsef(t, actual.IsNull, "expected %v, got null", exp)
	}
	if IsAlmostEqual(exp, actual.Decimal.InexactFloat64()) {
		return true
	}
	return assert.Equal(t, exp, actual.Decimal.InexactFloat64())
}

func SoftTxEq(t *testing.T, exp *ptf.Tx, actual *ptf.Tx) bool {
	expMemo := exp.Memo
	actualMemo := actual.Memo
	// To match the memo using a regex, set the expected memo with matchingMemo()
	if strings.HasPrefix(expMemo, matchingMemoPrefix) {
		pattern := strings.TrimPrefix(expMemo, matchingMemoPrefix)
		if regexp.MustCompile(pattern).MatchString(actualMemo) {
			expMemo = actualMemo
		}
	}

	ok := true
	ok = assert.Equal(t, exp.Security, actual.Security) && ok
	ok = assert.Equal(t, exp.TradeDate, actual.TradeDate) && ok
	ok = assert.Equal(t, exp.SettlementDate, actual.SettlementDate) && ok
	ok = assert.Equal(t, exp.Action, actual.Action) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.Shares, actual.Shares),
		"Shares: expected %s, got %s", exp.Shares, actual.Shares) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.AmountPerShare, actual.AmountPerShare),
		"AmountPerShare: expected %s, got %s", exp.AmountPerShare, actual.AmountPerShare) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.Commission, actual.Commission),
		"Commission: expected %s, got %s", exp.Commission, actual.Commission) && ok
	ok = assert.Equal(t, exp.TxCurrency, actual.TxCurrency) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.TxCurrToLocalExchangeRate, actual.TxCurrToLocalExchangeRate),
		"TxCurrToLocalExchangeRate: expected %s, got %s",
		exp.TxCurrToLocalExchangeRate, actual.TxCurrToLocalExchangeRate) && ok
	ok = assert.Equal(t, exp.CommissionCurrency, actual.CommissionCurrency) && ok
	ok = assert.Truef(t,
		decAlmostEqual(exp.CommissionCurrToLocalExchangeRate, actual.CommissionCurrToLocalExchangeRate),
		"CommissionCurrToLocalExchangeRate: expected %s, got %s",
		exp.CommissionCurrToLocalExchangeRate, actual.CommissionCurrToLocalExchangeRate) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.SplitRatioNum, actual.SplitRatioNum),
		"SplitRatioNum: expected %s, got %s", exp.SplitRatioNum, actual.SplitRatioNum) && ok
	ok = assert.Truef(t, decAlmostEqual(exp.SplitRatioDenom, actual.SplitRatioDenom),
		"SplitRatioDenom: expected %s, got %s", exp.SplitRatioDenom, actual.SplitRatioDenom) && ok
	ok = assert.Equal(t, expMemo, actualMemo) && ok
	ok = assert.Equal(t, exp.Affiliate, actual.Affiliate) && ok
	ok = assert.Equal(t, exp.SpecifiedSuperficialLoss, actual.SpecifiedSuperficialLoss) && ok
	ok = assert.Equal(t, exp.ReadIndex, actual.ReadIndex) && ok
	return ok
}

// RqNullDecOpt fails the test (with a nice diff) unless actual is null.
func RqNullDecOpt(t *testing.T, actual decimal_opt.DecimalOpt) {
	if !actual.IsNull {
		require.Equal(t, decimal_opt.Null, actual)
	}
}

func ValidateTxs(t *testing.T, expTxs []*ptf.Tx, actualTxs []*ptf.Tx) {
	if !assert.Equal(t, len(expTxs), len(actualTxs)) {
		for j := range actualTxs {
			fmt.Println(j, "Tx:", actualTxs[j], "Af:", actualTxs[j].Affiliate.Id())
		}
		require.FailNow(t, "ValidateTxs failed")
	}
	for i, tx := range actualTxs {
		fail := false
		fail = !SoftTxEq(t, expTxs[i], tx) || fail
		if fail {
			for j := range actualTxs {
				fmt.Println(j, "Tx:", actualTxs[j], "Af:", actualTxs[j].Affiliate.Id())
			}
			require.FailNowf(t, "ValidateTxs failed", "Tx %d", i)
		}
	}
}

func SoftStEq(
	t *testing.T,
	exp *ptf.PortfolioSecurityStatus, actual *ptf.PortfolioSecurityStatus) bool {

	ok := true
	ok = assert.Equal(t, exp.Security, actual.Security) && ok
	ok = assert.Truef(t, exp.ShareBalance.Equal(actual.ShareBalance),
		"ShareBalance: expected %s, got %s", exp.ShareBalance, actual.ShareBalance) && ok
	ok = assert.Truef(t, exp.AllAffiliatesShareBalance.Equal(actual.AllAffiliatesShareBalance),
		"AllAffiliatesShareBalance: expected %s, got %s",
		exp.AllAffiliatesShareBalance, actual.AllAffiliatesShareBalance) && ok

	if exp.TotalAcb.IsNull || actual.TotalAcb.IsNull {
		ok = assert.Equalf(t, exp.TotalAcb.IsNull, actual.TotalAcb.IsNull,
			"TotalAcb: expected %s, got %s", exp.TotalAcb.String(), actual.TotalAcb.String()) && ok
	} else {
		// Allow ourselves to specify approximate values in TPSS.
		acbOk := exp.TotalAcb.Equal(actual.TotalAcb) ||
			IsAlmostEqual(exp.TotalAcb.Decimal.InexactFloat64(), actual.TotalAcb.Decimal.InexactFloat64())
		ok = assert.Truef(t, acbOk, "TotalAcb: expected %s, got %s",
			exp.TotalAcb.String(), actual.TotalAcb.String()) && ok
	}

	return ok
}

func StEq(
	t *testing.T,
	exp *ptf.PortfolioSecurityStatus, actual *ptf.PortfolioSecurityStatus) {
	if !SoftStEq(t, exp, actual) {
		t.FailNow()
	}
}

func SoftSflAlmostEqual(t *testing.T, expDelta TDt, delta *ptf.TxDelta) bool {
	if expDelta.SFL != 0.0 {
		expSfl := expDelta.SFL
		if expSfl == EXP_FLOAT_ZERO {
			expSfl = 0.0
		}
		return softAlmostEqualDecOpt(t, expSfl, delta.SuperficialLoss)
	}
	return true
}

func ValidateDelta(t *testing.T, delta *ptf.TxDelta, expDelta TDt) {
	fail := false
	fail = !SoftStEq(t, expDelta.PostSt.X(), delta.PostStatus) || fail
	fail = !softAlmostEqualDecOpt(t, expDelta.Gain, delta.CapitalGain) || fail
	fail = !SoftSflAlmostEqual(t, expDelta, delta) || fail
	if fail {
		require.FailNow(t, "ValidateDelta failed")
	}
}

func ValidateDeltas(t *testing.T, deltas []*ptf.TxDelta, expDeltas []TDt) {
	if len(expDeltas) != len(deltas) {
		for j := range deltas {
			fmt.Println(j, "Tx:", deltas[j].Tx, "PostStatus:", deltas[j].PostStatus)
		}
		require.Equal(t, len(expDeltas), len(deltas), "Num deltas did not match")
	}
	for i, delta := range deltas {
		fail := false
		fail = !SoftStEq(t, expDeltas[i].PostSt.X(), delta.PostStatus) || fail
		fail = !softAlmostEqualDecOpt(t, expDeltas[i].Gain, delta.CapitalGain) || fail
		fail = !SoftSflAlmostEqual(t, expDeltas[i], delta) || fail
		fail = (expDeltas[i].PotentiallyOverAppliedSfl != delta.PotentiallyOverAppliedSfl) || fail
		if fail {
			for j := range deltas {
				fmt.Println(j, "Tx:", deltas[j].Tx, "PostStatus:", deltas[j].PostStatus,
					"Gain:", deltas[j].CapitalGain, "SFL:", deltas[j].SuperficialLoss,
					"PotentiallyOverAppliedSfl:", deltas[j].PotentiallyOverAppliedSfl)
			}
			require.FailNowf(t, "ValidateDeltas failed", "Delta %d", i)
		}
	}
}
