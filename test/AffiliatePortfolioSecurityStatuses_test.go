package test

import (
	"testing"

	"github.com/stretchr/testify/require"

	ptf "github.com/go-acb/acb/portfolio"
)

func ensureAffiliates() (defaultAf, defaultRAf, afB, afBR, afC, afCR *ptf.Affiliate) {
	defaultAf = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("Default")
	defaultRAf = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("Default (R)")
	afB = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("B")
	afBR = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("B (R)")
	afC = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("C")
	afCR = ptf.GlobalAffiliateDedupTable.DedupedAffiliate("C (R)")
	return
}

func TestAffiliatePortfolioSecurityStatusesBasic(t *testing.T) {
	crq := NewCustomRequire(t)

	defaultAf, _, afB, _, _, _ := ensureAffiliates()

	// Case:
	// GetLatestPostStatusForAffiliate("default")
	// GetLatestPostStatusForAffiliate("B")
	statuses := ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)
	crq.Equal(TPSS{Shares: 0}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 0}.X(), statuses.GetLatestPostStatusForAffiliate(afB))

	// Case:
	// (initial default state)
	// GetLatestPostStatusForAffiliate("default")
	// GetLatestPostStatusForAffiliate("B")
	nonDefaultInitStatus := TPSS{Shares: 12, TotalAcb: 24}.X()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(
		DefaultTestSecurity, nonDefaultInitStatus)
	crq.Equal(TPSS{Shares: 12, TotalAcb: 24}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 0, AllShares: 12}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
}

func TestAffiliatePortfolioSecurityStatusesGetLatest(t *testing.T) {
	crq := NewCustomRequire(t)
	rq := require.New(t)
	_, _, afB, _, _, _ := ensureAffiliates()

	// Case:
	// GetLatestPostStatus()
	statuses := ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)
	latest := statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 0}.X(), latest)

	// Case:
	// (init with default)
	// GetLatestPostStatus()
	nonDefaultInitStatus := TPSS{Shares: 12, TotalAcb: 24}.X()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(
		DefaultTestSecurity, nonDefaultInitStatus)
	latest = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 12, TotalAcb: 24}.X(), latest)

	// Case:
	// SetLatestPostStatus("B")
	// GetLatestPostStatus()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X()))
	latest = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X(), latest)

	// Case:
	// (init with default)
	// SetLatestPostStatus("B") // invalid all share bal
	// GetLatestPostStatus()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(
		DefaultTestSecurity, nonDefaultInitStatus)
	rq.ErrorContains(
		statuses.SetLatestPostStatus(afB, TPSS{Shares: 2, TotalAcb: 4}.X()),
		"AllAffiliatesShareBalance")

	// Case:
	// (init with default)
	// SetLatestPostStatus("B")
	// GetLatestPostStatus()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(
		DefaultTestSecurity, nonDefaultInitStatus)
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 2, AllShares: 14, TotalAcb: 4}.X()))
	latest = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 2, AllShares: 14, TotalAcb: 4}.X(), latest)
}

func TestAffiliatePortfolioSecurityStatusesGetNextPreGetLatest(t *testing.T) {
	crq := NewCustomRequire(t)
	rq := require.New(t)
	defaultAf, _, afB, _, _, _ := ensureAffiliates()

	// Case:
	// SetLatestPostStatus("B")
	// NextPreStatus("Default")
	// GetLatestPostStatus()
	statuses := ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X()))
	defaultStatus := statuses.NextPreStatus(defaultAf)
	crq.Equal(TPSS{Shares: 0, AllShares: 2}.X(), defaultStatus)
	latest := statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X(), latest)

	// Case:
	// (init with default)
	// SetLatestPostStatus("B")
	// NextPreStatus("Default")
	// GetLatestPostStatus()
	nonDefaultInitStatus := TPSS{Shares: 12, TotalAcb: 24}.X()
	statuses = ptf.NewAffiliatePortfolioSecurityStatuses(
		DefaultTestSecurity, nonDefaultInitStatus)
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 2, AllShares: 14, TotalAcb: 4}.X()))
	defaultStatus = statuses.NextPreStatus(defaultAf)
	crq.Equal(TPSS{Shares: 12, AllShares: 14, TotalAcb: 24}.X(), defaultStatus)
	latest = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 2, AllShares: 14, TotalAcb: 4}.X(), latest)
}

func TestAffiliatePortfolioSecurityStatusesFullUseCase(t *testing.T) {
	crq := NewCustomRequire(t)
	rq := require.New(t)
	defaultAf, _, afB, _, _, _ := ensureAffiliates()

	// Case:
	// NextPreStatus("Default")
	// Get*
	// SetLatestPostStatus("Default")
	//
	// NextPreStatus("Default")
	// Get*
	// SetLatestPostStatus("Default")
	//
	// NextPreStatus("B")
	// Get*
	// SetLatestPostStatus("B")
	//
	// NextPreStatus("B")
	// Get*
	// SetLatestPostStatus("B")
	//
	// NextPreStatus("Default")
	// Get*
	// SetLatestPostStatus("Default")

	// Buy 2 default
	statuses := ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)
	nextPre := statuses.NextPreStatus(defaultAf)
	crq.Equal(TPSS{Shares: 0, AllShares: 0}.X(), nextPre)
	latestPost := statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 0, AllShares: 0}.X(), latestPost)
	crq.Equal(TPSS{Shares: 0}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 0}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
	rq.Nil(statuses.SetLatestPostStatus(defaultAf, TPSS{Shares: 2, TotalAcb: 4}.X()))

	// Buy 1 default
	nextPre = statuses.NextPreStatus(defaultAf)
	crq.Equal(TPSS{Shares: 2, TotalAcb: 4}.X(), nextPre)
	latestPost = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X(), latestPost)
	crq.Equal(TPSS{Shares: 2, AllShares: 2, TotalAcb: 4}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 0, AllShares: 2}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
	rq.Nil(statuses.SetLatestPostStatus(defaultAf, TPSS{Shares: 3, TotalAcb: 6}.X()))

	// Buy 12 B
	nextPre = statuses.NextPreStatus(afB)
	crq.Equal(TPSS{Shares: 0, AllShares: 3}.X(), nextPre)
	latestPost = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 3, AllShares: 3, TotalAcb: 6}.X(), latestPost)
	crq.Equal(TPSS{Shares: 3, AllShares: 3, TotalAcb: 6}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 0, AllShares: 3}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
	rq.ErrorContains(
		statuses.SetLatestPostStatus(afB, TPSS{Shares: 12, AllShares: 12, TotalAcb: 24}.X()),
		"AllAffiliatesShareBalance")
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 12, AllShares: 15, TotalAcb: 24}.X()))

	// Sell 6 B
	nextPre = statuses.NextPreStatus(afB)
	crq.Equal(TPSS{Shares: 12, AllShares: 15, TotalAcb: 24}.X(), nextPre)
	latestPost = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 12, AllShares: 15, TotalAcb: 24}.X(), latestPost)
	crq.Equal(TPSS{Shares: 3, AllShares: 3, TotalAcb: 6}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 12, AllShares: 15, TotalAcb: 24}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
	rq.ErrorContains(
		statuses.SetLatestPostStatus(afB, TPSS{Shares: 6, AllShares: 15, TotalAcb: 24}.X()),
		"AllAffiliatesShareBalance")
	rq.Nil(statuses.SetLatestPostStatus(afB, TPSS{Shares: 6, AllShares: 9, TotalAcb: 12}.X()))

	// Buy 1 default
	nextPre = statuses.NextPreStatus(defaultAf)
	crq.Equal(TPSS{Shares: 3, AllShares: 9, TotalAcb: 6}.X(), nextPre)
	latestPost = statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 6, AllShares: 9, TotalAcb: 12}.X(), latestPost)
	crq.Equal(TPSS{Shares: 3, AllShares: 3, TotalAcb: 6}.X(), statuses.GetLatestPostStatusForAffiliate(defaultAf))
	crq.Equal(TPSS{Shares: 6, AllShares: 9, TotalAcb: 12}.X(), statuses.GetLatestPostStatusForAffiliate(afB))
	rq.Nil(statuses.SetLatestPostStatus(defaultAf, TPSS{Shares: 4, AllShares: 10, TotalAcb: 6}.X()))
}

func TestAffiliatePortfolioSecurityStatusRegistered(t *testing.T) {
	crq := NewCustomRequire(t)
	rq := require.New(t)
	defaultAf, defRAf, _, _, _, _ := ensureAffiliates()

	statuses := ptf.NewAffiliatePortfolioSecurityStatuses(DefaultTestSecurity, nil)

	// Case:
	// NextPreStatus("(R)")
	nextPre := statuses.NextPreStatus(defRAf)
	crq.Equal(TPSS{Shares: 0, AllShares: 0, TotalAcb: NaN}.X(), nextPre)

	// Case:
	// SetLatestPostStatus("(R)")
	rq.Nil(statuses.SetLatestPostStatus(defRAf, TPSS{Shares: 1, AllShares: 1, TotalAcb: NaN}.X()))
	latestPost := statuses.GetLatestPostStatus()
	crq.Equal(TPSS{Shares: 1, AllShares: 1, TotalAcb: NaN}.X(), latestPost)

	// Case:
	// SetLatestPostStatus("(R)") // non-null ACB for a registered affiliate
	rq.ErrorContains(
		statuses.SetLatestPostStatus(defRAf, TPSS{Shares: 0, AllShares: 1, TotalAcb: 0}.X()),
		"ACB-nullness mismatch")

	// Case:
	// SetLatestPostStatus("default") // null ACB for an unregistered affiliate
	rq.ErrorContains(
		statuses.SetLatestPostStatus(defaultAf, TPSS{Shares: 0, AllShares: 1, TotalAcb: NaN}.X()),
		"ACB-nullness mismatch")
}
