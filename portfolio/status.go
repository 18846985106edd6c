package portfolio

import (
	"fmt"

	"github.com/go-acb/acb/cdecimal"
	decimal_opt "github.com/go-acb/acb/decimal_value"
	"github.com/go-acb/acb/util"
)

// AffiliatePortfolioSecurityStatuses tracks, for one security, the most
// recent post-status per affiliate plus the aggregate share balance across
// all affiliates. It is the sole owner of the sequence of post-statuses;
// everything else (deltas) holds non-owning references into it.
type AffiliatePortfolioSecurityStatuses struct {
	security                   string
	lastPostStatusForAffiliate map[string]*PortfolioSecurityStatus
	latestAllAffShareBalance   cdecimal.NonNegative
	latestAffiliate            *Affiliate
}

// NewAffiliatePortfolioSecurityStatuses constructs a tracker for security,
// optionally seeded with an opening balance for the default affiliate (for
// carrying over a prior tax year). The initial status's ShareBalance and
// AllAffiliatesShareBalance must match, since a mismatch would imply prior
// affiliate history the tracker has no record of.
func NewAffiliatePortfolioSecurityStatuses(
	security string, initialDefaultAffStatus *PortfolioSecurityStatus) *AffiliatePortfolioSecurityStatuses {

	statuses := &AffiliatePortfolioSecurityStatuses{
		security:                   security,
		lastPostStatusForAffiliate: make(map[string]*PortfolioSecurityStatus),
		latestAllAffShareBalance:   cdecimal.ZeroNonNegative(),
	}

	if initialDefaultAffStatus != nil {
		util.Assert(initialDefaultAffStatus.ShareBalance.Equal(initialDefaultAffStatus.AllAffiliatesShareBalance),
			"initial default-affiliate status must have ShareBalance == AllAffiliatesShareBalance")
		defaultAff := GlobalAffiliateDedupTable.GetDefaultAffiliate()
		statuses.lastPostStatusForAffiliate[defaultAff.Id()] = initialDefaultAffStatus
		statuses.latestAllAffShareBalance = initialDefaultAffStatus.AllAffiliatesShareBalance
		statuses.latestAffiliate = defaultAff
	}

	return statuses
}

func (s *AffiliatePortfolioSecurityStatuses) makeDefaultStatus(af *Affiliate) *PortfolioSecurityStatus {
	acb := decimal_opt.Zero
	if af.Registered() {
		acb = decimal_opt.Null
	}
	return &PortfolioSecurityStatus{
		Security:                  s.security,
		ShareBalance:              cdecimal.ZeroNonNegative(),
		AllAffiliatesShareBalance: s.latestAllAffShareBalance,
		TotalAcb:                  acb,
	}
}

// GetLatestPostStatusForAffiliate returns af's last recorded post-status,
// or an empty one (with the current aggregate balance carried in) if af
// has never had a transaction for this security.
func (s *AffiliatePortfolioSecurityStatuses) GetLatestPostStatusForAffiliate(af *Affiliate) *PortfolioSecurityStatus {
	if st, ok := s.lastPostStatusForAffiliate[af.Id()]; ok {
		return st
	}
	return s.makeDefaultStatus(af)
}

func (s *AffiliatePortfolioSecurityStatuses) GetLatestPostStatus() *PortfolioSecurityStatus {
	if s.latestAffiliate == nil {
		return NewEmptyPortfolioSecurityStatus(s.security)
	}
	return s.GetLatestPostStatusForAffiliate(s.latestAffiliate)
}

// NextPreStatus implements §4.3's next_pre_status: af's last post-status,
// except that if the most recent transaction (for any affiliate) was for a
// *different* affiliate, the aggregate balance is refreshed to the current
// global total, since af's own cached copy may be stale.
func (s *AffiliatePortfolioSecurityStatuses) NextPreStatus(af *Affiliate) *PortfolioSecurityStatus {
	last, ok := s.lastPostStatusForAffiliate[af.Id()]
	if !ok {
		return s.makeDefaultStatus(af)
	}
	if s.latestAffiliate != nil && s.latestAffiliate.Id() == af.Id() {
		return last
	}
	updated := *last
	updated.AllAffiliatesShareBalance = s.latestAllAffShareBalance
	return &updated
}

// SetLatestPostStatus records status as af's new post-status, enforcing
// the two §4.3 invariants: registered-ness matches ACB-nullness, and the
// new aggregate balance is consistent with the previous aggregate plus
// exactly af's own share-balance delta.
func (s *AffiliatePortfolioSecurityStatuses) SetLatestPostStatus(af *Affiliate, status *PortfolioSecurityStatus) error {
	if af.Registered() != status.TotalAcb.IsNull {
		return fmt.Errorf(
			"internal error: registered affiliate %s ACB-nullness mismatch (registered=%v, acbIsNull=%v)",
			af.Id(), af.Registered(), status.TotalAcb.IsNull)
	}

	oldAfShareBalance := s.GetLatestPostStatusForAffiliate(af).ShareBalance
	expectedAllShareBal := s.latestAllAffShareBalance.Decimal().
		Sub(oldAfShareBalance.Decimal()).
		Add(status.ShareBalance.Decimal())
	if !status.AllAffiliatesShareBalance.Decimal().Equal(expectedAllShareBal) {
		return fmt.Errorf(
			"internal error: new AllAffiliatesShareBalance (%v) does not reconcile with prior aggregate (%v), old affiliate balance (%v), new affiliate balance (%v)",
			status.AllAffiliatesShareBalance, s.latestAllAffShareBalance, oldAfShareBalance, status.ShareBalance)
	}

	s.lastPostStatusForAffiliate[af.Id()] = status
	s.latestAllAffShareBalance = status.AllAffiliatesShareBalance
	s.latestAffiliate = af
	return nil
}

// NonNilTxAffiliate returns tx.Affiliate, falling back to the default
// affiliate only when unset (expected in hand-built test fixtures; real
// ingested Txs always have an affiliate per CheckTxSanity).
func NonNilTxAffiliate(tx *Tx) *Affiliate {
	if tx.Affiliate == nil {
		return GlobalAffiliateDedupTable.GetDefaultAffiliate()
	}
	return tx.Affiliate
}
