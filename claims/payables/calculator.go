package payables

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	claimerrors "github.com/medassure/claims-engine/claims/errors"
	"github.com/medassure/claims-engine/claims/models"
)

// Categories excluded from reimbursement when the caller configures none.
var defaultNonPayableCategories = []string{
	"non-medical",
	"consumables",
	"registration",
}

type Config struct {
	// NonPayableCategories are billed-item categories excluded from
	// reimbursement. Nil means the defaults; an explicit empty slice disables
	// the exclusion list.
	NonPayableCategories []string
}

type Calculator struct {
	nonPayable map[string]bool
}

func NewCalculator(cfg Config) *Calculator {
	categories := cfg.NonPayableCategories
	if categories == nil {
		categories = defaultNonPayableCategories
	}
	nonPayable := make(map[string]bool, len(categories))
	for _, c := range categories {
		nonPayable[normalizeCategory(c)] = true
	}
	return &Calculator{nonPayable: nonPayable}
}

// Calculate converts billed line items plus coverage terms into the approved
// amount. The deduction order is fixed and load-bearing: total, non-payable,
// room-rent excess, co-payment, deductible, then floor at zero and cap at the
// balance sum insured. Reordering changes results because the co-payment base
// depends on the two deductions before it.
func (c *Calculator) Calculate(claim *models.ExtractedClaim, coverage *models.CoverageRecord, timeline *models.TimelineResult) (*models.PayablesBreakdown, error) {
	if err := c.validate(claim, coverage); err != nil {
		return nil, err
	}

	breakdown := &models.PayablesBreakdown{}

	// 1. total billed
	for _, amt := range claim.BilledItems {
		breakdown.TotalBilled = breakdown.TotalBilled.Add(amt)
	}
	if breakdown.TotalBilled.IsZero() {
		breakdown.TotalBilled = claim.ClaimedAmount
	}

	// 2. non-payable categories
	for category, amt := range claim.BilledItems {
		if c.nonPayable[normalizeCategory(category)] {
			breakdown.NonPayableAmount = breakdown.NonPayableAmount.Add(amt)
		}
	}

	// 3. room rent excess, applied to the room-rent line item only
	breakdown.RoomRentExcess = roomRentExcess(claim, coverage, timeline)

	// 4. co-payment on the amount admissible so far
	if coverage.CoPaymentPercent.IsPositive() {
		base := breakdown.TotalBilled.
			Sub(breakdown.NonPayableAmount).
			Sub(breakdown.RoomRentExcess)
		breakdown.CoPayment = base.Mul(coverage.CoPaymentPercent).Div(decimal.NewFromInt(100)).Round(2)
	}

	// 5. deductible, once per claim
	breakdown.Deductible = coverage.Deductible

	// 6. floor at zero, cap at the remaining sum insured
	approved := breakdown.TotalBilled.
		Sub(breakdown.NonPayableAmount).
		Sub(breakdown.RoomRentExcess).
		Sub(breakdown.CoPayment).
		Sub(breakdown.Deductible)
	if approved.IsNegative() {
		approved = decimal.Zero
	}
	if approved.GreaterThan(coverage.BalanceSumInsured) {
		approved = coverage.BalanceSumInsured
	}
	breakdown.ApprovedAmount = approved.Round(2)

	return breakdown, nil
}

func (c *Calculator) validate(claim *models.ExtractedClaim, coverage *models.CoverageRecord) error {
	for category, amt := range claim.BilledItems {
		if amt.IsNegative() {
			return &claimerrors.ValidationError{
				Msg: fmt.Sprintf("billed item %q has negative amount %s", category, amt),
				Err: fmt.Errorf("negative monetary input"),
			}
		}
	}
	if claim.ClaimedAmount.IsNegative() {
		return &claimerrors.ValidationError{
			Msg: fmt.Sprintf("claimed amount %s is negative", claim.ClaimedAmount),
			Err: fmt.Errorf("negative monetary input"),
		}
	}
	// Coverage terms arrive from the tolerant upstream decode, so a malformed
	// payload can carry negatives. A negative deduction would inflate the
	// approved amount past the billed total, so they are rejected here too.
	coverageTerms := map[string]decimal.Decimal{
		"balance_sum_insured": coverage.BalanceSumInsured,
		"room_rent_limit":     coverage.RoomRentLimit,
		"co_payment_percent":  coverage.CoPaymentPercent,
		"deductible":          coverage.Deductible,
	}
	for term, amt := range coverageTerms {
		if amt.IsNegative() {
			return &claimerrors.ValidationError{
				Msg: fmt.Sprintf("coverage %s %s is negative", term, amt),
				Err: fmt.Errorf("negative monetary input"),
			}
		}
	}
	return nil
}

// roomRentExcess charges back the portion of the room-rent line item above
// the policy's per-day limit. No limit, or no room-rent line item, means no
// excess.
func roomRentExcess(claim *models.ExtractedClaim, coverage *models.CoverageRecord, timeline *models.TimelineResult) decimal.Decimal {
	if !coverage.RoomRentLimit.IsPositive() {
		return decimal.Zero
	}

	roomRent := decimal.Zero
	found := false
	for category, amt := range claim.BilledItems {
		if strings.Contains(normalizeCategory(category), "room") {
			roomRent = roomRent.Add(amt)
			found = true
		}
	}
	if !found {
		return decimal.Zero
	}

	days := stayDays(timeline)
	perDay := roomRent.Div(decimal.NewFromInt(int64(days)))
	excessPerDay := perDay.Sub(coverage.RoomRentLimit)
	if !excessPerDay.IsPositive() {
		return decimal.Zero
	}
	return excessPerDay.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

// stayDays derives the billable day count from the hospitalization duration,
// minimum one day.
func stayDays(timeline *models.TimelineResult) int {
	if timeline == nil || !timeline.DurationKnown {
		return 1
	}
	days := int(math.Ceil(timeline.DurationHours / 24))
	if days < 1 {
		return 1
	}
	return days
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	category = strings.ReplaceAll(category, "_", " ")
	return category
}
