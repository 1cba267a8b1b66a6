package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/medassure/claims-engine/claims/admissibility"
	"github.com/medassure/claims-engine/claims/constants"
	"github.com/medassure/claims-engine/claims/coverage"
	"github.com/medassure/claims-engine/claims/models"
	"github.com/medassure/claims-engine/claims/payables"
	"github.com/medassure/claims-engine/claims/timeline"
	"github.com/medassure/claims-engine/log"
)

// Engine runs one claim through the adjudication stages and assembles the
// final verdict. Every invocation returns a complete structured verdict,
// never a bare error: partial failures are represented as explicit statuses
// so callers can distinguish "rejected by rule" from "could not complete
// adjudication".
type Engine interface {
	Adjudicate(ctx context.Context, claim *models.ExtractedClaim) *models.Verdict
}

// Ensure engine satisfies the interface
var _ Engine = &engine{}

type engine struct {
	verifier    coverage.Verifier
	checker     *admissibility.Checker
	calculator  *payables.Calculator
	timelineCfg timeline.Config

	logger logrus.FieldLogger
}

func NewEngine(verifier coverage.Verifier, cfg *Config) Engine {
	return &engine{
		verifier:    verifier,
		checker:     admissibility.NewChecker(admissibility.Config{TimelineHardFail: cfg.TimelineHardFail}),
		calculator:  payables.NewCalculator(payables.Config{NonPayableCategories: cfg.nonPayableCategories()}),
		timelineCfg: cfg.timelineConfig(),
		logger:      log.Engine,
	}
}

// Adjudicate executes the stage machine EXTRACTED → COVERAGE_VERIFIED →
// ADMISSIBILITY_CHECKED → PAYABLES_CALCULATED → VERDICT_ISSUED. Each stage
// appends to the processing log regardless of outcome; the log is part of
// the output contract.
func (e *engine) Adjudicate(ctx context.Context, claim *models.ExtractedClaim) *models.Verdict {
	verdict := &models.Verdict{
		SourceFile:     claim.SourceFile,
		PageCount:      claim.PageCount,
		ClaimData:      claim,
		ApprovedAmount: decimal.Zero,
	}

	// Stage 1: extracted claim must carry the fields everything downstream
	// depends on. Missing mandatory fields abort the pipeline.
	if missing := claim.MissingFields(); len(missing) > 0 {
		detail := fmt.Sprintf("claim is missing mandatory fields: %s", strings.Join(missing, ", "))
		e.step(verdict, constants.StageExtracted, constants.StepFailed, detail)
		return e.fail(verdict, detail)
	}
	e.step(verdict, constants.StageExtracted, constants.StepSuccess, "")

	// Stage 2: coverage verification. The verifier is fail-soft, so this
	// stage always yields a record; a non-active record downgrades the step
	// to WARNING and leans the verdict toward rejection downstream.
	cov := e.verifier.Verify(ctx, claim.PolicyNumber, claim.PatientName, claim.PatientAge)
	verdict.CoverageVerification = cov
	verdict.ClaimHistory = e.verifier.ClaimHistory(ctx, claim.PolicyNumber, claim.PatientName)
	if cov.Active() {
		e.step(verdict, constants.StageCoverageVerified, constants.StepSuccess, "")
	} else {
		e.step(verdict, constants.StageCoverageVerified, constants.StepWarning,
			fmt.Sprintf("policy status %s", cov.PolicyStatus))
	}

	// Stage 3: admissibility, with the timeline annotation as input.
	tl := timeline.Validate(claim.AdmissionDate, claim.DischargeDate, claim.SubmissionDate, e.timelineCfg)
	admissible := e.checker.Check(claim, cov, &tl)
	verdict.AdmissibilityCheck = admissible
	switch {
	case !admissible.IsAdmissible:
		e.step(verdict, constants.StageAdmissibilityChecked, constants.StepWarning,
			strings.Join(admissible.Reasons, "; "))
	case tl.Status == constants.TimelineWarning:
		e.step(verdict, constants.StageAdmissibilityChecked, constants.StepWarning,
			strings.Join(tl.Warnings, "; "))
	default:
		e.step(verdict, constants.StageAdmissibilityChecked, constants.StepSuccess, "")
	}

	// Stage 4: payables. Skipped for inadmissible claims, since no amount
	// can be approved.
	var breakdown *models.PayablesBreakdown
	if admissible.IsAdmissible {
		var err error
		breakdown, err = e.calculator.Calculate(claim, cov, &tl)
		if err != nil {
			e.step(verdict, constants.StagePayablesCalculated, constants.StepFailed, err.Error())
			return e.fail(verdict, err.Error())
		}
		verdict.PayablesCalculation = breakdown
		e.step(verdict, constants.StagePayablesCalculated, constants.StepSuccess, "")
	} else {
		e.step(verdict, constants.StagePayablesCalculated, constants.StepWarning,
			"skipped, claim not admissible")
	}

	// Stage 5: decision mapping.
	e.decide(verdict, admissible, breakdown)
	e.step(verdict, constants.StageVerdictIssued, constants.StepSuccess, verdict.Decision)

	e.logger.WithFields(logrus.Fields{
		"policy_number":   claim.PolicyNumber,
		"decision":        verdict.Decision,
		"approved_amount": verdict.ApprovedAmount.String(),
	}).Info("claim adjudicated")

	return verdict
}

func (e *engine) decide(verdict *models.Verdict, admissible *models.AdmissibilityResult, breakdown *models.PayablesBreakdown) {
	if !admissible.IsAdmissible {
		verdict.Decision = constants.DecisionRejected
		verdict.Status = strings.Join(admissible.Reasons, "; ")
		return
	}

	verdict.ApprovedAmount = breakdown.ApprovedAmount
	switch {
	case breakdown.ApprovedAmount.IsZero():
		verdict.Decision = constants.DecisionRejected
		verdict.Status = "zero payable after deductions"
	case breakdown.ApprovedAmount.Equal(breakdown.TotalBilled):
		verdict.Decision = constants.DecisionApproved
		verdict.Status = "claim approved in full"
	default:
		verdict.Decision = constants.DecisionPartiallyApproved
		verdict.Status = fmt.Sprintf("approved %s of %s billed",
			breakdown.ApprovedAmount.String(), breakdown.TotalBilled.String())
	}

	if verdict.Decision == constants.DecisionApproved || verdict.Decision == constants.DecisionPartiallyApproved {
		verdict.PaymentInstruction = fmt.Sprintf(
			"Release payment of %s against policy %s to the provider on record.",
			verdict.ApprovedAmount.String(), verdict.ClaimData.PolicyNumber)
	}
}

// fail finalizes an aborted run: overall state ERROR, surfaced to the caller
// as a structured verdict rather than a crash.
func (e *engine) fail(verdict *models.Verdict, detail string) *models.Verdict {
	verdict.Decision = constants.DecisionError
	verdict.Status = detail
	e.logger.WithFields(logrus.Fields{
		"policy_number": verdict.ClaimData.PolicyNumber,
	}).Warnf("adjudication aborted: %s", detail)
	return verdict
}

func (e *engine) step(verdict *models.Verdict, name, status, detail string) {
	verdict.ProcessingSteps = append(verdict.ProcessingSteps, models.ProcessingStep{
		Step:   len(verdict.ProcessingSteps) + 1,
		Name:   name,
		Status: status,
		Detail: detail,
	})
}
