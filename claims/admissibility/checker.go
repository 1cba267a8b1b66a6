package admissibility

import (
	"fmt"
	"strings"

	"github.com/medassure/claims-engine/claims/constants"
	"github.com/medassure/claims-engine/claims/models"
)

// Reason strings surfaced on inadmissible claims. Hard reasons flip
// IsAdmissible; the timeline reason is advisory unless TimelineHardFail is
// configured.
const (
	ReasonPolicyNotActive     = "policy not active/covered"
	ReasonPreExistingExcluded = "pre-existing condition excluded by policy"
	ReasonExceedsSumInsured   = "claimed amount exceeds available sum insured"
)

// Diagnosis markers that flag a pre-existing condition. A marker hit only
// matters when the policy excludes pre-existing cover.
var preExistingMarkers = []string{
	"pre-existing",
	"pre existing",
	"preexisting",
	"chronic",
	"diabetes",
	"hypertension",
}

type Config struct {
	// TimelineHardFail escalates timeline warnings from advisory to hard
	// rejection reasons.
	TimelineHardFail bool
}

type Checker struct {
	cfg Config
}

func NewChecker(cfg Config) *Checker {
	return &Checker{cfg: cfg}
}

// Check combines coverage, timeline, and extracted claim fields into the
// admissibility decision. All applicable reasons are collected, not just the
// first; IsAdmissible is false iff at least one hard reason was collected.
func (c *Checker) Check(claim *models.ExtractedClaim, coverage *models.CoverageRecord, timeline *models.TimelineResult) *models.AdmissibilityResult {
	result := &models.AdmissibilityResult{
		Coverage: coverage,
		Timeline: timeline,
	}

	var hard []string

	if !coverage.Active() {
		reason := ReasonPolicyNotActive
		if coverage.Error != "" {
			reason = fmt.Sprintf("%s: %s", ReasonPolicyNotActive, coverage.Error)
		}
		hard = append(hard, reason)
	}

	if isPreExisting(claim.Diagnosis) && !coverage.PreExistingCovered {
		hard = append(hard, ReasonPreExistingExcluded)
	}

	requested := claim.RequestedAmount()
	if requested.GreaterThan(coverage.BalanceSumInsured) {
		hard = append(hard, fmt.Sprintf("%s (requested %s, available %s)",
			ReasonExceedsSumInsured, requested.String(), coverage.BalanceSumInsured.String()))
	}

	result.Reasons = hard

	if timeline != nil && timeline.Status == constants.TimelineWarning {
		advisory := fmt.Sprintf("timeline requires manual review: %s",
			strings.Join(timeline.Warnings, "; "))
		result.Reasons = append(result.Reasons, advisory)
		if c.cfg.TimelineHardFail {
			hard = append(hard, advisory)
		}
	}

	result.IsAdmissible = len(hard) == 0
	if result.IsAdmissible {
		// Advisory-only reasons are surfaced through the timeline result, so
		// the invariant "inadmissible iff reasons non-empty" holds.
		result.Reasons = nil
	}
	return result
}

func isPreExisting(diagnosis string) bool {
	diagnosis = strings.ToLower(diagnosis)
	for _, marker := range preExistingMarkers {
		if strings.Contains(diagnosis, marker) {
			return true
		}
	}
	return false
}
