package constants

// Verdict decisions
const DecisionApproved = "APPROVED"
const DecisionRejected = "REJECTED"
const DecisionPartiallyApproved = "PARTIALLY_APPROVED"
const DecisionError = "ERROR"

// Policy statuses as reported by coverage verification
const PolicyStatusActive = "ACTIVE"
const PolicyStatusInvalid = "INVALID"
const PolicyStatusError = "ERROR"

// Timeline validation outcomes
const TimelineValid = "VALID"
const TimelineWarning = "WARNING"

// Processing step statuses
const StepSuccess = "SUCCESS"
const StepWarning = "WARNING"
const StepFailed = "FAILED"

// Pipeline stages, in execution order
const StageExtracted = "EXTRACTED"
const StageCoverageVerified = "COVERAGE_VERIFIED"
const StageAdmissibilityChecked = "ADMISSIBILITY_CHECKED"
const StagePayablesCalculated = "PAYABLES_CALCULATED"
const StageVerdictIssued = "VERDICT_ISSUED"

// Policy metadata change types
const ChangeTypeFamilyUpdate = "family_update"
const ChangeTypePPNUpdate = "ppn_update"

// Version identifies the running release in outbound request headers.
// Overridden at build time via -ldflags.
var Version = "latest"
