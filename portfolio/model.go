package portfolio

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/go-acb/acb/cdecimal"
	"github.com/go-acb/acb/date"
	decimal_opt "github.com/go-acb/acb/decimal_value"
	"github.com/go-acb/acb/util"
)

type Currency string

const (
	DEFAULT_CURRENCY Currency = ""
	CAD              Currency = "CAD"
	USD              Currency = "USD"
)

func NewCurrency(s string) Currency {
	switch strings.ToUpper(s) {
	case "":
		return DEFAULT_CURRENCY
	case "CAD":
		return CAD
	case "USD":
		return USD
	default:
		return Currency(strings.ToUpper(s))
	}
}

func (c Currency) IsDefault() bool {
	return c == DEFAULT_CURRENCY || c == CAD
}

// CurrencyAndExchangeRate pairs a transaction currency with the rate that
// converts one unit of it into CAD. The default (CAD) currency's rate must
// always be exactly 1; this is enforced at construction, not re-checked on
// every use downstream.
type CurrencyAndExchangeRate struct {
	Currency     Currency
	ExchangeRate cdecimal.Positive
}

func NewCurrencyAndExchangeRate(c Currency, rate cdecimal.Positive) (CurrencyAndExchangeRate, error) {
	if c.IsDefault() && !rate.Decimal().Equal(decimal.NewFromInt(1)) {
		return CurrencyAndExchangeRate{}, fmt.Errorf(
			"default currency (CAD) exchange rate was not 1 (was %v)", rate)
	}
	return CurrencyAndExchangeRate{Currency: c, ExchangeRate: rate}, nil
}

func RequireCurrencyAndExchangeRate(c Currency, rate cdecimal.Positive) CurrencyAndExchangeRate {
	cr, err := NewCurrencyAndExchangeRate(c, rate)
	if err != nil {
		panic(err)
	}
	return cr
}

func CadCurrencyAndExchangeRate() CurrencyAndExchangeRate {
	return RequireCurrencyAndExchangeRate(CAD, cdecimal.RequirePositive(decimal.NewFromInt(1)))
}

func (c CurrencyAndExchangeRate) IsDefault() bool {
	return c.Currency.IsDefault()
}

type TxAction int

const (
	NO_ACTION TxAction = iota
	BUY
	SELL
	ROC      // Return of capital
	SFLA     // Superficial loss ACB adjustment
	SPLIT    // Stock split/reverse split
	DIVIDEND // Dividend event, tracked for FX purposes only
)

func (a TxAction) String() string {
	var str string = "invalid"
	switch a {
	case BUY:
		str = "Buy"
	case SELL:
		str = "Sell"
	case ROC:
		str = "RoC"
	case SFLA:
		str = "SfLA"
	case SPLIT:
		str = "Split"
	case DIVIDEND:
		str = "Dividend"
	default:
	}
	return str
}

func ParseTxAction(s string) (TxAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return BUY, nil
	case "sell":
		return SELL, nil
	case "roc":
		return ROC, nil
	case "sfla":
		return SFLA, nil
	case "split":
		return SPLIT, nil
	case "dividend":
		return DIVIDEND, nil
	default:
		return NO_ACTION, fmt.Errorf("unrecognized action %q", s)
	}
}

// SplitRatio is a ratio of new shares to old shares, e.g. 2-for-1 is
// Num=2, Denom=1.
type SplitRatio struct {
	Num   cdecimal.Positive
	Denom cdecimal.Positive
}

func (r SplitRatio) String() string {
	return fmt.Sprintf("%v-for-%v", r.Num, r.Denom)
}

// ParseSplitRatio parses strings of the shape "2-for-1".
func ParseSplitRatio(s string) (SplitRatio, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "-for-", 2)
	if len(parts) != 2 {
		return SplitRatio{}, fmt.Errorf("invalid split ratio %q, expected form \"N-for-M\"", s)
	}
	num, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return SplitRatio{}, fmt.Errorf("invalid split ratio numerator in %q: %w", s, err)
	}
	denom, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return SplitRatio{}, fmt.Errorf("invalid split ratio denominator in %q: %w", s, err)
	}
	pNum, err := cdecimal.NewPositive(num)
	if err != nil {
		return SplitRatio{}, fmt.Errorf("split ratio numerator in %q: %w", s, err)
	}
	pDenom, err := cdecimal.NewPositive(denom)
	if err != nil {
		return SplitRatio{}, fmt.Errorf("split ratio denominator in %q: %w", s, err)
	}
	return SplitRatio{Num: pNum, Denom: pDenom}, nil
}

var (
	registeredRe = regexp.MustCompile(`\([rR]\)`)
	extraSpaceRe = regexp.MustCompile(`  +`)
)

// Affiliate is an interned, tax-law-distinct portfolio owner: self,
// spouse, a registered account, or (for internal preprocessing purposes
// only) the distinguished global pseudo-affiliate used by split expansion.
type Affiliate struct {
	id         string
	name       string
	registered bool
	global     bool
}

func (a *Affiliate) Id() string {
	return a.id
}

func (a *Affiliate) Name() string {
	return a.name
}

func (a *Affiliate) Registered() bool {
	return a.registered
}

func (a *Affiliate) Default() bool {
	return strings.HasPrefix(a.Id(), "default")
}

// IsGlobal is true only for the distinguished pseudo-affiliate used by
// split preprocessing (§4.4); it is never a legal affiliate on an ingested
// transaction.
func (a *Affiliate) IsGlobal() bool {
	return a.global
}

// Technically redundant, but used for cmp, since attrs are unexported
func (a *Affiliate) Equal(other *Affiliate) bool {
	return a == other
}

func (a *Affiliate) String() string {
	return fmt.Sprintf("%v", *a)
}

func NewUndedupedAffiliate(name string) Affiliate {
	// Extract registered marker
	registered := registeredRe.MatchString(name)
	prettyName := name
	if registered {
		prettyName = registeredRe.ReplaceAllString(prettyName, " ")
	}
	prettyName = extraSpaceRe.ReplaceAllString(prettyName, " ")
	prettyName = strings.TrimSpace(prettyName)
	if prettyName == "" {
		prettyName = "Default"
	}
	id := strings.ToLower(prettyName)
	if registered {
		id += " (R)"
		prettyName += " (R)"
	}

	return Affiliate{id: id, name: prettyName, registered: registered}
}

const globalAffiliateId = "global"

// AffiliateDedupTable interns Affiliates by name. A single instance
// (GlobalAffiliateDedupTable) is shared across the per-security goroutines
// dispatched for §5, so all access to its map goes through mu.
type AffiliateDedupTable struct {
	mu         sync.Mutex
	affiliates map[string]*Affiliate
	global     *Affiliate
}

func NewAffiliateDedupTable() *AffiliateDedupTable {
	dt := &AffiliateDedupTable{affiliates: map[string]*Affiliate{}}
	// Insert the default affiliates (just to ensure they get a consistent
	// capitalization)
	dt.DedupedAffiliate("Default")
	dt.DedupedAffiliate("Default (R)")
	dt.mu.Lock()
	dt.global = &Affiliate{id: globalAffiliateId, name: "Global", global: true}
	dt.affiliates[globalAffiliateId] = dt.global
	dt.mu.Unlock()
	return dt
}

// Used by io.go while loading Txs
var GlobalAffiliateDedupTable = NewAffiliateDedupTable()

func (t *AffiliateDedupTable) DedupedAffiliate(name string) *Affiliate {
	preDedupedAffiliate := NewUndedupedAffiliate(name)

	t.mu.Lock()
	defer t.mu.Unlock()
	if affiliate, ok := t.affiliates[preDedupedAffiliate.Id()]; ok {
		return affiliate
	}

	// Add to the dedup table
	affiliate := &Affiliate{}
	*affiliate = preDedupedAffiliate
	t.affiliates[affiliate.Id()] = affiliate
	return affiliate
}

func (t *AffiliateDedupTable) MustGet(id string) *Affiliate {
	t.mu.Lock()
	af, ok := t.affiliates[id]
	t.mu.Unlock()
	util.Assertf(ok, "AffiliateDedupTable could not find Affiliate \"%s\"", id)
	return af
}

func (t *AffiliateDedupTable) GetDefaultAffiliate() *Affiliate {
	return t.MustGet("default")
}

// GlobalAffiliate is the distinguished pseudo-affiliate used only by split
// preprocessing (§4.4); never a legal affiliate on an ingested Tx.
func (t *AffiliateDedupTable) GlobalAffiliate() *Affiliate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.global
}

// PortfolioSecurityStatus is an immutable snapshot of a security's
// position for one affiliate at a point in time. TotalAcb is absent
// (IsNull) if and only if the affiliate is registered.
type PortfolioSecurityStatus struct {
	Security                  string
	ShareBalance              cdecimal.NonNegative
	AllAffiliatesShareBalance cdecimal.NonNegative
	TotalAcb                  decimal_opt.DecimalOpt
}

func NewEmptyPortfolioSecurityStatus(security string) *PortfolioSecurityStatus {
	return &PortfolioSecurityStatus{
		Security:                  security,
		ShareBalance:              cdecimal.ZeroNonNegative(),
		AllAffiliatesShareBalance: cdecimal.ZeroNonNegative(),
		TotalAcb:                  decimal_opt.Zero,
	}
}

func (s *PortfolioSecurityStatus) PerShareAcb() decimal_opt.DecimalOpt {
	if s.ShareBalance.IsZero() {
		return decimal_opt.Zero
	}
	return s.TotalAcb.DivD(s.ShareBalance.Decimal())
}

type SFLInput struct {
	SuperficialLoss decimal_opt.DecimalOpt
	Force           bool
}

func (i SFLInput) Equal(other SFLInput) bool {
	return i.SuperficialLoss.Equal(other.SuperficialLoss) && i.Force == other.Force
}

func (i SFLInput) String() string {
	return fmt.Sprintf("%v%s", i.SuperficialLoss, util.Tern(i.Force, " (forced)", ""))
}

// We want to be able to call .Equal on this value, but it doesn't quite work
// correctly with the raw Optional (cmp package doesn't seem to work that well with
// generics).
type SFLInputOpt struct {
	util.Optional[SFLInput]
}

func NewSFLInputOpt(v SFLInput) SFLInputOpt {
	return SFLInputOpt{util.NewOptional(v)}
}

func (b SFLInputOpt) Equal(other SFLInputOpt) bool {
	needEqualityCheck, equal := b.Optional.NeedValueEqualityCheck(other.Optional)
	if needEqualityCheck {
		return b.Optional.MustGet().Equal(other.Optional.MustGet())
	}
	return equal
}

func (b SFLInputOpt) String() string {
	return b.Optional.String()
}

// Tx is a validated transaction. Most fields are shared across all
// actions; which ones are meaningful depends on Action (see §3 and
// CheckTxSanity in io.go, which enforces the per-action invariants at
// ingestion time).
type Tx struct {
	Security                          string
	TradeDate                         date.Date
	SettlementDate                    date.Date
	Action                            TxAction
	Shares                            decimal.Decimal
	AmountPerShare                    decimal.Decimal
	Commission                        decimal.Decimal
	TxCurrency                        Currency
	TxCurrToLocalExchangeRate         decimal.Decimal
	CommissionCurrency                Currency
	CommissionCurrToLocalExchangeRate decimal.Decimal
	// SplitRatioNum/Denom are only meaningful for Action == SPLIT.
	SplitRatioNum   decimal.Decimal
	SplitRatioDenom decimal.Decimal
	Memo            string
	Affiliate       *Affiliate

	// More commonly optional fields/columns

	// The total superficial loss for the transaction, as explicitly
	// specified by the user. It is compared against the calculated SFL: a
	// difference greater than maxSflDiscrepancy fails the Sell unless Force is
	// set, in which case the specified value is used and no warning is emitted.
	// If specified, the user is also required to specify one or more
	// SfLA Txs following this one, accounting for all shares experiencing the loss.
	// NOTE: This is always a negative (or zero) value in CAD, so that it matches the
	// displayed value
	SpecifiedSuperficialLoss SFLInputOpt

	// The absolute order in which the Tx was read from file or entered.
	// Used as a tiebreak in sorting.
	ReadIndex uint32
}

type TxDelta struct {
	Tx          *Tx
	PreStatus   *PortfolioSecurityStatus
	PostStatus  *PortfolioSecurityStatus
	CapitalGain decimal_opt.DecimalOpt

	SuperficialLoss decimal_opt.DecimalOpt
	// A ratio, representing <N reacquired shares which suffered SFL> / <N sold shares>
	SuperficialLossRatio      cdecimal.Ratio
	PotentiallyOverAppliedSfl bool
}

func (d *TxDelta) String() string {
	return fmt.Sprintf(
		"Tx: %v, PreSt: %v, PostSt: %v, Gain: %v, Sfl: %v, SflR: %v, POASfl: %v",
		d.Tx, d.PreStatus, d.PostStatus, d.CapitalGain, d.SuperficialLoss,
		d.SuperficialLossRatio, d.PotentiallyOverAppliedSfl)
}

func (d *TxDelta) AcbDelta() decimal_opt.DecimalOpt {
	if d.PreStatus == nil {
		return d.PostStatus.TotalAcb
	}
	return d.PostStatus.TotalAcb.Sub(d.PreStatus.TotalAcb)
}

func (d *TxDelta) IsSuperficialLoss() bool {
	return !d.SuperficialLoss.IsNull && !d.SuperficialLoss.IsZero()
}

type txSorter struct {
	Txs []*Tx
}

func (s *txSorter) Len() int {
	return len(s.Txs)
}

func (s *txSorter) Swap(i, j int) {
	s.Txs[i], s.Txs[j] = s.Txs[j], s.Txs[i]
}

func (s *txSorter) Less(i, j int) bool {
	iDate := s.Txs[i].SettlementDate
	jDate := s.Txs[j].SettlementDate
	if iDate.Before(jDate) {
		return true
	} else if iDate.After(jDate) {
		return false
	}

	// Tie break by the order read from file.
	return s.Txs[i].ReadIndex < s.Txs[j].ReadIndex
}

func SortTxs(txs []*Tx) []*Tx {
	sorter := txSorter{
		Txs: txs,
	}
	sort.Sort(&sorter)
	return sorter.Txs
}
