package fx

import (
	"fmt"

	"github.com/go-acb/acb/date"
	decimal "github.com/go-acb/acb/decimal_value"
)

// DailyRate is a published CAD/USD rate for one calendar day. A zero,
// non-null rate marks a day BoC has no published observation for (weekend,
// holiday) as distinct from a day that has simply never been fetched.
// The rate itself is never negative; NewDailyRate/MustNewDailyRate are the
// only ways to construct one, and both enforce that.
type DailyRate struct {
	Date               date.Date
	foreignToLocalRate decimal.DecimalOpt
}

// NewDailyRate rejects a non-null, negative rate.
func NewDailyRate(d date.Date, rate decimal.DecimalOpt) (DailyRate, error) {
	if !rate.IsNull && rate.IsNegative() {
		return DailyRate{}, fmt.Errorf("exchange rate for %s is negative: %s", d.String(), rate.String())
	}
	return DailyRate{Date: d, foreignToLocalRate: rate}, nil
}

// MustNewDailyRate is NewDailyRate, for callers (literals, test fixtures)
// that already know the rate is non-negative.
func MustNewDailyRate(d date.Date, rate decimal.DecimalOpt) DailyRate {
	dr, err := NewDailyRate(d, rate)
	if err != nil {
		panic(err)
	}
	return dr
}

// ForeignToLocalRate is always non-negative (or null).
func (r DailyRate) ForeignToLocalRate() decimal.DecimalOpt {
	return r.foreignToLocalRate
}

func (r DailyRate) Equal(o DailyRate) bool {
	return r.Date == o.Date && r.foreignToLocalRate.Equal(o.foreignToLocalRate)
}

func (r DailyRate) String() string {
	return fmt.Sprintf("%s : %s", r.Date.String(), r.foreignToLocalRate.String())
}
