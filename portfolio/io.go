package portfolio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/go-acb/acb/date"
	decimal_opt "github.com/go-acb/acb/decimal_value"
	"github.com/go-acb/acb/fx"
)

const (
	CsvDateFormatDefault string = "2006-01-02"
)

var CsvDateFormat string = CsvDateFormatDefault

type ColParser func(string, *Tx) error

var colParserMap = map[string]ColParser{
	"security":                 parseSecurity,
	"trade date":               parseTradeDate,
	"date":                     parseSettlementDate,
	"settlement date":          parseSettlementDate,
	"action":                   parseAction,
	"shares":                   parseShares,
	"amount/share":             parseAmountPerShare,
	"commission":               parseCommission,
	"currency":                 parseTxCurr,
	"exchange rate":            parseTxFx,
	"commission currency":      parseCommissionCurr,
	"commission exchange rate": parseCommissionFx,
	"superficial loss":         parseSuperficialLoss,
	"split ratio":              parseSplitRatioCol,
	"affiliate":                parseAffiliate,
	"memo":                     parseMemo,
}

var ColNames []string

func init() {
	ColNames = make([]string, 0, len(colParserMap))
	for name := range colParserMap {
		ColNames = append(ColNames, name)
	}
}

func DefaultTx() *Tx {
	return &Tx{
		Security: "", SettlementDate: date.Date{}, Action: NO_ACTION,
		Shares: decimal.Zero, AmountPerShare: decimal.Zero, Commission: decimal.Zero,
		TxCurrency: DEFAULT_CURRENCY, TxCurrToLocalExchangeRate: decimal.Zero,
		CommissionCurrency: DEFAULT_CURRENCY, CommissionCurrToLocalExchangeRate: decimal.Zero,
		Affiliate: GlobalAffiliateDedupTable.GetDefaultAffiliate(),
	}
}

// CheckTxSanity enforces the structural and per-action invariants a Tx must
// satisfy before it can be fed into the delta engine.
func CheckTxSanity(tx *Tx) error {
	if tx.Security == "" {
		return fmt.Errorf("transaction has no security")
	} else if (tx.TradeDate == date.Date{}) {
		return fmt.Errorf("Transaction has no trade date")
	} else if (tx.SettlementDate == date.Date{}) {
		return fmt.Errorf("transaction has no settlement date")
	} else if tx.Action == NO_ACTION {
		return fmt.Errorf("transaction has no action (Buy, Sell, RoC, SfLA, Split, Dividend)")
	} else if tx.Affiliate != nil && tx.Affiliate.IsGlobal() && tx.Action != SPLIT {
		return fmt.Errorf("the global affiliate may only be used on Split transactions")
	}

	switch tx.Action {
	case BUY, SELL:
		if !tx.Shares.IsPositive() {
			return fmt.Errorf("%s requires a positive share count", tx.Action)
		}
	case SPLIT:
		if tx.SplitRatioNum.IsZero() || tx.SplitRatioDenom.IsZero() {
			return fmt.Errorf("Split requires a split ratio column (e.g. \"2-for-1\")")
		}
	case SFLA:
		if !tx.Shares.Mul(tx.AmountPerShare).IsPositive() {
			return fmt.Errorf("SfLA requires a positive total amount")
		}
	}
	return nil
}

func fixupTxFx(tx *Tx, rl *fx.RateLoader) error {
	if tx.TxCurrency == DEFAULT_CURRENCY || tx.TxCurrency == CAD {
		tx.TxCurrency = CAD
		tx.TxCurrToLocalExchangeRate = decimal.NewFromInt(1)
	}
	if tx.CommissionCurrency == DEFAULT_CURRENCY {
		tx.CommissionCurrency = tx.TxCurrency
	}

	if tx.TxCurrToLocalExchangeRate.IsZero() {
		if tx.TxCurrency != USD {
			return fmt.Errorf("unsupported auto-FX for %s", tx.TxCurrency)
		}
		rate, err := rl.GetEffectiveUsdCadRate(tx.TradeDate)
		if err != nil {
			return err
		}
		tx.TxCurrToLocalExchangeRate = rate.ForeignToLocalRate().Decimal
	}

	if tx.TxCurrency == tx.CommissionCurrency && tx.CommissionCurrToLocalExchangeRate.IsZero() {
		tx.CommissionCurrToLocalExchangeRate = tx.TxCurrToLocalExchangeRate
	} else if tx.CommissionCurrToLocalExchangeRate.IsZero() {
		if tx.CommissionCurrency != USD {
			return fmt.Errorf("unsupported auto-FX for %s", tx.CommissionCurrency)
		}
		rate, err := rl.GetEffectiveUsdCadRate(tx.TradeDate)
		if err != nil {
			return err
		}
		tx.CommissionCurrToLocalExchangeRate = rate.ForeignToLocalRate().Decimal
	}
	return nil
}

func ParseTxCsv(reader io.Reader, initialGlobalReadIndex uint32,
	csvDesc string, rateLoader *fx.RateLoader) ([]*Tx, error) {

	globalRowIndex := initialGlobalReadIndex
	csvR := csv.NewReader(reader)
	records, err := csvR.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV %s: %v", csvDesc, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no rows found in %s", csvDesc)
	}

	header := records[0]

	colParsers := make([]ColParser, len(header))

	for i, col := range header {
		sanCol := strings.TrimSpace(strings.ToLower(col))
		if parser, ok := colParserMap[sanCol]; ok {
			colParsers[i] = parser
		} else {
			rateLoader.ErrPrinter.F("Warning: Unrecognized column %s\n", sanCol)
			colParsers[i] = parseNothing
		}
	}

	txs := make([]*Tx, 0, len(records)-1)
	for i, record := range records[1:] {
		tx := DefaultTx()
		tx.ReadIndex = globalRowIndex
		globalRowIndex++
		for j, col := range record {
			err = colParsers[j](strings.TrimSpace(col), tx)
			if err != nil {
				return nil, fmt.Errorf("Error parsing %s at line:col %d:%d: %v", csvDesc, i+1, j, err)
			}
		}
		err = CheckTxSanity(tx)
		if err != nil {
			return nil, fmt.Errorf("error parsing %s at line %d: %v", csvDesc, i+1, err)
		}
		err = fixupTxFx(tx, rateLoader)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseNothing(data string, tx *Tx) error {
	return nil
}

func parseSecurity(data string, tx *Tx) error {
	tx.Security = strings.TrimSpace(data)
	return nil
}

func parseTradeDate(data string, tx *Tx) error {
	t, err := date.Parse(CsvDateFormat, data)
	if err != nil {
		return err
	}
	tx.TradeDate = t
	return nil
}

func parseSettlementDate(data string, tx *Tx) error {
	t, err := date.Parse(CsvDateFormat, data)
	if err != nil {
		return err
	}
	if tx.SettlementDate != (date.Date{}) {
		return fmt.Errorf(
			"Settlement Date provided twice (found both 'date' and 'settlement date' columns)")
	}
	tx.SettlementDate = t
	return nil
}

func parseAction(data string, tx *Tx) error {
	action, err := ParseTxAction(data)
	if err != nil {
		return err
	}
	tx.Action = action
	return nil
}

func parseShares(data string, tx *Tx) error {
	if data == "" {
		return nil
	}
	shares, err := decimal.NewFromString(data)
	if err != nil {
		return fmt.Errorf("error parsing # shares: %v", err)
	}
	tx.Shares = shares
	return nil
}

func parseAmountPerShare(data string, tx *Tx) error {
	if data == "" {
		return nil
	}
	aps, err := decimal.NewFromString(data)
	if err != nil {
		return fmt.Errorf("error parsing price/share: %v", err)
	}
	tx.AmountPerShare = aps
	return nil
}

func parseCommission(data string, tx *Tx) error {
	c := decimal.Zero
	var err error
	if data != "" {
		c, err = decimal.NewFromString(data)
		if err != nil {
			return fmt.Errorf("error parsing commission: %v", err)
		}
	}
	tx.Commission = c
	return nil
}

func parseTxCurr(data string, tx *Tx) error {
	tx.TxCurrency = NewCurrency(data)
	return nil
}

func parseTxFx(data string, tx *Tx) error {
	rate := decimal.Zero
	var err error
	if data != "" {
		rate, err = decimal.NewFromString(data)
		if err != nil {
			return fmt.Errorf("error parsing exchange rate: %v", err)
		}
	}
	tx.TxCurrToLocalExchangeRate = rate
	return nil
}

func parseCommissionCurr(data string, tx *Tx) error {
	tx.CommissionCurrency = NewCurrency(data)
	return nil
}

func parseCommissionFx(data string, tx *Tx) error {
	rate := decimal.Zero
	var err error
	if data != "" {
		rate, err = decimal.NewFromString(data)
		if err != nil {
			return fmt.Errorf("error parsing commission exchange rate: %v", err)
		}
	}
	tx.CommissionCurrToLocalExchangeRate = rate
	return nil
}

func parseSuperficialLoss(data string, tx *Tx) error {
	// Check for forcing marker (a terminating !)
	forceFlag := false
	if len(data) > 0 {
		forceFlag = data[len(data)-1] == '!'
		if forceFlag {
			data = data[:len(data)-1]
		}
	}

	if data == "" {
		return nil
	}
	sfl, err := decimal.NewFromString(data)
	if err != nil {
		return fmt.Errorf("error parsing superficial loss: %v", err)
	}
	if sfl.IsPositive() {
		return fmt.Errorf("superficial loss must be specified as a non-positive value: %s", sfl)
	}
	tx.SpecifiedSuperficialLoss = NewSFLInputOpt(SFLInput{
		SuperficialLoss: decimal_opt.New(sfl), Force: forceFlag})
	return nil
}

func parseSplitRatioCol(data string, tx *Tx) error {
	if data == "" {
		return nil
	}
	ratio, err := ParseSplitRatio(data)
	if err != nil {
		return err
	}
	tx.SplitRatioNum = ratio.Num.Decimal()
	tx.SplitRatioDenom = ratio.Denom.Decimal()
	return nil
}

func parseAffiliate(data string, tx *Tx) error {
	if strings.TrimSpace(strings.ToLower(data)) == "global" {
		return fmt.Errorf("\"global\" is a reserved affiliate name used only internally for Split preprocessing")
	}
	tx.Affiliate = GlobalAffiliateDedupTable.DedupedAffiliate(data)
	return nil
}

func parseMemo(data string, tx *Tx) error {
	tx.Memo = data
	return nil
}

func ToCsvString(txs []*Tx) string {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"security",
		"trade date",
		"settlement date",
		"action",
		"shares",
		"amount/share",
		"commission",
		"currency",
		"exchange rate",
		"commission currency",
		"commission exchange rate",
		"superficial loss",
		"split ratio",
		"affiliate",
		"memo",
	}
	writer.Write(header)

	currString := func(curr Currency) string {
		if curr == DEFAULT_CURRENCY {
			return string(CAD)
		}
		return string(curr)
	}
	rateIsExplicit := func(curr Currency, rate decimal.Decimal) bool {
		if rate.IsZero() {
			return false
		} else if (curr == DEFAULT_CURRENCY || curr == CAD) && rate.Equal(decimal.NewFromInt(1)) {
			return false
		}
		return true
	}

	for _, tx := range txs {
		txRate := ""
		commRate := ""
		if rateIsExplicit(tx.TxCurrency, tx.TxCurrToLocalExchangeRate) {
			txRate = tx.TxCurrToLocalExchangeRate.String()
		}
		if rateIsExplicit(tx.CommissionCurrency, tx.CommissionCurrToLocalExchangeRate) {
			commRate = tx.CommissionCurrToLocalExchangeRate.String()
		}
		sfl := ""
		if tx.SpecifiedSuperficialLoss.Present() {
			sflVal := tx.SpecifiedSuperficialLoss.MustGet()
			sfl = sflVal.SuperficialLoss.String()
			if sflVal.Force {
				sfl += "!"
			}
		}
		splitRatio := ""
		if tx.Action == SPLIT {
			splitRatio = fmt.Sprintf("%s-for-%s", tx.SplitRatioNum.String(), tx.SplitRatioDenom.String())
		}

		record := []string{
			tx.Security,
			tx.TradeDate.String(),
			tx.SettlementDate.String(),
			tx.Action.String(),
			tx.Shares.String(),
			tx.AmountPerShare.String(),
			tx.Commission.String(),
			currString(tx.TxCurrency),
			txRate,
			currString(tx.CommissionCurrency),
			commRate,
			sfl,
			splitRatio,
			NonNilTxAffiliate(tx).Name(),
			tx.Memo,
		}
		writer.Write(record)
	}
	writer.Flush()

	return buf.String()
}
