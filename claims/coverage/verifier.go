package coverage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/medassure/claims-engine/claims/client"
	"github.com/medassure/claims-engine/claims/constants"
	"github.com/medassure/claims-engine/claims/metadata"
	"github.com/medassure/claims-engine/claims/models"
	"github.com/medassure/claims-engine/log"
)

// DefaultMinPolicyNumberLen is the syntactic plausibility threshold for
// policy numbers. It stands in for real underwriting validation; swapping in
// an underwriting feed only touches this adapter, not callers.
const DefaultMinPolicyNumberLen = 10

// Verifier normalizes external coverage verification into CoverageRecords.
// Every failure mode degrades to a record instead of an error: a downed
// verification service must not crash the pipeline.
type Verifier interface {
	Verify(ctx context.Context, policyNumber, patientName string, patientAge int) *models.CoverageRecord
	ClaimHistory(ctx context.Context, policyNumber, patientName string) *models.ClaimHistory
}

// Ensure verifier satisfies the interface
var _ Verifier = &verifier{}

type verifier struct {
	client             client.APIClient
	meta               *metadata.Store
	minPolicyNumberLen int
	logger             logrus.FieldLogger
}

func NewVerifier(c client.APIClient, meta *metadata.Store, minPolicyNumberLen int) Verifier {
	if minPolicyNumberLen <= 0 {
		minPolicyNumberLen = DefaultMinPolicyNumberLen
	}
	return &verifier{
		client:             c,
		meta:               meta,
		minPolicyNumberLen: minPolicyNumberLen,
		logger:             log.Coverage,
	}
}

func (v *verifier) Verify(ctx context.Context, policyNumber, patientName string, patientAge int) *models.CoverageRecord {
	record := &models.CoverageRecord{VerifiedAt: time.Now().UTC()}

	policyNumber = strings.TrimSpace(policyNumber)
	// Cheap fast-path: an implausibly short policy number is rejected without
	// a network call.
	if len(policyNumber) <= v.minPolicyNumberLen {
		record.PolicyStatus = constants.PolicyStatusInvalid
		record.Error = fmt.Sprintf("policy number %q failed syntactic validation (length <= %d)",
			policyNumber, v.minPolicyNumberLen)
		return record
	}

	resp, err := v.client.VerifyCoverage(ctx, client.CoverageRequest{
		PolicyNumber: policyNumber,
		PatientName:  patientName,
		PatientAge:   patientAge,
	})
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"policy_number": policyNumber,
		}).Warnf("coverage verification failed: %s", err)
		record.PolicyStatus = constants.PolicyStatusError
		record.Error = err.Error()
		return record
	}

	record.Covered = resp.Covered
	record.PolicyStatus = normalizeStatus(resp)
	record.PreExistingCovered = resp.PreExistingCovered
	record.SumInsured = v.amount(record, "sum_insured", resp.SumInsured)
	record.BalanceSumInsured = v.amount(record, "balance_sum_insured", resp.BalanceSumInsured)
	record.RoomRentLimit = v.amount(record, "room_rent_limit", resp.RoomRentLimit)
	record.CoPaymentPercent = v.amount(record, "co_payment_percent", resp.CoPaymentPercent)
	record.Deductible = v.amount(record, "deductible", resp.Deductible)

	v.applyMetadata(record, resp)

	return record
}

// applyMetadata resolves the current family/network rules from the policy
// metadata ledger when the external record is stale or silent about its
// version.
func (v *verifier) applyMetadata(record *models.CoverageRecord, resp *client.CoverageResponse) {
	if v.meta == nil || resp.Insurer == "" || resp.Product == "" {
		record.PolicyVersion = resp.PolicyVersion
		return
	}

	current := v.meta.GetCurrentVersion(resp.Insurer, resp.Product)
	record.PolicyVersion = resp.PolicyVersion
	if current == 0 {
		return
	}

	if resp.PolicyVersion >= current {
		return
	}

	// External record predates the ledger; stamp the current version and
	// surface the changes it is missing.
	record.PolicyVersion = current
	entry, err := v.meta.GetHistory(resp.Insurer, resp.Product)
	if err != nil {
		return
	}
	for _, change := range entry.History {
		if change.Version <= resp.PolicyVersion {
			continue
		}
		record.Notes = append(record.Notes, fmt.Sprintf(
			"policy %s v%d (%s) postdates the verification record",
			change.ChangeType, change.Version, change.Timestamp.Format("2006-01-02")))
	}
}

func (v *verifier) ClaimHistory(ctx context.Context, policyNumber, patientName string) *models.ClaimHistory {
	history := &models.ClaimHistory{
		PolicyNumber: strings.TrimSpace(policyNumber),
		PatientName:  patientName,
	}

	resp, err := v.client.GetClaimHistory(ctx, history.PolicyNumber, patientName)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"policy_number": history.PolicyNumber,
		}).Warnf("claim history lookup failed: %s", err)
		history.Error = err.Error()
		return history
	}

	history.TotalClaims = resp.TotalClaims
	for _, c := range resp.Claims {
		claimed, _ := parseAmount(c.ClaimedAmount)
		approved, _ := parseAmount(c.ApprovedAmount)
		history.TotalClaimed = history.TotalClaimed.Add(claimed)
		history.TotalApproved = history.TotalApproved.Add(approved)
		history.Claims = append(history.Claims, models.PastClaim{
			ID:             c.ID,
			Date:           c.Date,
			ClaimedAmount:  claimed,
			ApprovedAmount: approved,
			Status:         c.Status,
		})
	}
	if history.TotalClaims == 0 {
		history.TotalClaims = len(history.Claims)
	}
	return history
}

// amount converts a raw monetary field, noting the degradation on the record
// when the value is malformed rather than failing verification.
func (v *verifier) amount(record *models.CoverageRecord, field, raw string) decimal.Decimal {
	amt, ok := parseAmount(raw)
	if !ok {
		record.Notes = append(record.Notes, fmt.Sprintf("unusable %s value %q, defaulted to 0", field, raw))
	}
	return amt
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, true
	}
	amt, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return amt, true
}

// normalizeStatus maps whatever the service reported onto the three internal
// policy statuses.
func normalizeStatus(resp *client.CoverageResponse) string {
	switch status := strings.ToUpper(strings.TrimSpace(resp.PolicyStatus)); status {
	case constants.PolicyStatusActive, constants.PolicyStatusInvalid, constants.PolicyStatusError:
		return status
	case "":
		if resp.Covered {
			return constants.PolicyStatusActive
		}
		return constants.PolicyStatusInvalid
	default:
		// Unknown statuses (LAPSED, SUSPENDED, ...) are not payable
		return constants.PolicyStatusInvalid
	}
}
