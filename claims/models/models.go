package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medassure/claims-engine/claims/constants"
)

// ExtractedClaim is the immutable snapshot of a submitted claim produced by
// the document extractor. Dates are carried as the raw extracted strings;
// parsing happens in the timeline package so that unparseable values degrade
// instead of failing extraction.
type ExtractedClaim struct {
	SourceFile string `json:"source_file,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`

	PatientName    string `json:"patient_name"`
	PatientAge     int    `json:"patient_age,omitempty"`
	PolicyNumber   string `json:"policy_number"`
	AdmissionDate  string `json:"admission_date,omitempty"`
	DischargeDate  string `json:"discharge_date,omitempty"`
	SubmissionDate string `json:"submission_date,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`

	ClaimedAmount decimal.Decimal            `json:"claimed_amount"`
	BilledItems   map[string]decimal.Decimal `json:"billed_items"`

	RawText string `json:"raw_text,omitempty"`
}

// CoverageRecord is the normalized result of verifying a policy. Owned by the
// coverage verifier; consumed read-only downstream.
type CoverageRecord struct {
	Covered            bool            `json:"covered"`
	PolicyStatus       string          `json:"policy_status"`
	SumInsured         decimal.Decimal `json:"sum_insured"`
	BalanceSumInsured  decimal.Decimal `json:"balance_sum_insured"`
	RoomRentLimit      decimal.Decimal `json:"room_rent_limit"`
	CoPaymentPercent   decimal.Decimal `json:"co_payment_percent"`
	Deductible         decimal.Decimal `json:"deductible"`
	PreExistingCovered bool            `json:"pre_existing_covered"`

	// Stamped from the policy metadata ledger when the external record is
	// stale or partial.
	PolicyVersion int      `json:"policy_version,omitempty"`
	Notes         []string `json:"notes,omitempty"`

	Error      string    `json:"error,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

func (c *CoverageRecord) Active() bool {
	return c.Covered && c.PolicyStatus == constants.PolicyStatusActive
}

// TimelineResult annotates the verdict with date-based findings. It never
// fails a claim by itself.
type TimelineResult struct {
	DurationHours      float64  `json:"duration_hours"`
	DurationKnown      bool     `json:"duration_known"`
	DaysSinceAdmission int      `json:"days_since_admission"`
	SubmissionKnown    bool     `json:"submission_known"`
	Warnings           []string `json:"warnings,omitempty"`
	Status             string   `json:"status"`
}

// AdmissibilityResult holds the pass/fail decision with itemized reasons.
// IsAdmissible is false iff Reasons contains at least one hard reason.
type AdmissibilityResult struct {
	IsAdmissible bool            `json:"is_admissible"`
	Reasons      []string        `json:"reasons,omitempty"`
	Coverage     *CoverageRecord `json:"-"`
	Timeline     *TimelineResult `json:"-"`
}

// PayablesBreakdown itemizes the deterministic monetary calculation.
// ApprovedAmount = max(0, TotalBilled - NonPayableAmount - RoomRentExcess -
// CoPayment - Deductible), capped at the coverage balance sum insured.
type PayablesBreakdown struct {
	TotalBilled      decimal.Decimal `json:"total_billed"`
	NonPayableAmount decimal.Decimal `json:"non_payable_amount"`
	RoomRentExcess   decimal.Decimal `json:"room_rent_excess"`
	CoPayment        decimal.Decimal `json:"co_payment"`
	Deductible       decimal.Decimal `json:"deductible"`
	ApprovedAmount   decimal.Decimal `json:"approved_amount"`
}

// ProcessingStep records one pipeline stage in the verdict's audit log.
type ProcessingStep struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Verdict is the terminal artifact of an adjudication run. Immutable once
// emitted.
type Verdict struct {
	SourceFile string `json:"source_file,omitempty"`
	PageCount  int    `json:"page_count,omitempty"`

	ClaimData            *ExtractedClaim      `json:"claim_data"`
	CoverageVerification *CoverageRecord      `json:"coverage_verification,omitempty"`
	ClaimHistory         *ClaimHistory        `json:"claim_history,omitempty"`
	AdmissibilityCheck   *AdmissibilityResult `json:"admissibility_check,omitempty"`
	PayablesCalculation  *PayablesBreakdown   `json:"payables_calculation,omitempty"`

	Decision           string           `json:"final_verdict"`
	Status             string           `json:"status"`
	ApprovedAmount     decimal.Decimal  `json:"approved_amount"`
	PaymentInstruction string           `json:"payment_instruction,omitempty"`
	ProcessingSteps    []ProcessingStep `json:"processing_steps"`
}

// ChangeDetails shapes the payload of a policy metadata change record.
type ChangeDetails struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// PolicyChange is one append-only entry in a policy's metadata history.
type PolicyChange struct {
	Version    int           `json:"version"`
	ChangeType string        `json:"change_type"`
	Details    ChangeDetails `json:"details"`
	Actor      string        `json:"actor"`
	Timestamp  time.Time     `json:"timestamp"`
}

// PolicyMetadataEntry is the versioned ledger for one (company, product)
// pair. CurrentVersion only increments; History is append-only and forms the
// audit trail.
type PolicyMetadataEntry struct {
	Company        string         `json:"company"`
	Product        string         `json:"product"`
	CurrentVersion int            `json:"current_version"`
	History        []PolicyChange `json:"history"`
}

// PastClaim is one prior claim returned by the coverage service.
type PastClaim struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	ClaimedAmount  decimal.Decimal `json:"claimed_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	Status         string          `json:"status"`
}

// ClaimHistory aggregates a patient's prior claims under a policy. Failures
// degrade to a zero-claims record with Error set.
type ClaimHistory struct {
	PolicyNumber  string          `json:"policy_number"`
	PatientName   string          `json:"patient_name"`
	TotalClaims   int             `json:"total_claims"`
	TotalClaimed  decimal.Decimal `json:"total_claimed"`
	TotalApproved decimal.Decimal `json:"total_approved"`
	Claims        []PastClaim     `json:"claims,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// MissingFields reports the mandatory identifying fields absent from the
// claim. A non-empty result is fatal to the pipeline.
func (c *ExtractedClaim) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.PatientName) == "" {
		missing = append(missing, "patient_name")
	}
	if strings.TrimSpace(c.PolicyNumber) == "" {
		missing = append(missing, "policy_number")
	}
	if len(c.BilledItems) == 0 && c.ClaimedAmount.IsZero() {
		missing = append(missing, "billed_items")
	}
	return missing
}

// RequestedAmount is the amount the claimant is asking for: the explicit
// claimed amount when present, otherwise the sum of billed items.
func (c *ExtractedClaim) RequestedAmount() decimal.Decimal {
	if !c.ClaimedAmount.IsZero() {
		return c.ClaimedAmount
	}
	total := decimal.Zero
	for _, amt := range c.BilledItems {
		total = total.Add(amt)
	}
	return total
}
