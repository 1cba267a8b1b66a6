package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/medassure/claims-engine/claims/constants"
	"github.com/medassure/claims-engine/claims/models"
)

const (
	DefaultMinStayHours      = 24
	DefaultMaxSubmissionDays = 90
)

// Config controls the two date rules. Zero values fall back to the defaults;
// Now is overridable for tests.
type Config struct {
	MinStayHours      int
	MaxSubmissionDays int
	Now               func() time.Time
}

// Formats accepted for extracted dates, probed in order; first match wins.
// Datetime layouts come before their date-only prefixes so a trailing time is
// not rejected, and four-digit years before two-digit so "02-01-06" cannot
// shadow "02-01-2006".
var dateFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"02-01-2006 15:04",
	"02/01/2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"02-01-06",
	"02/01/06",
}

// ParseDate probes the accepted layouts and reports whether any matched.
// Unparseable input yields an absent date, never an error.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Validate evaluates the hospitalization duration and submission timeliness
// rules. Missing or unparseable dates skip the corresponding check. The
// result only ever annotates a claim; it cannot fail one.
func Validate(admissionDate, dischargeDate, submissionDate string, cfg Config) models.TimelineResult {
	minHours := cfg.MinStayHours
	if minHours <= 0 {
		minHours = DefaultMinStayHours
	}
	maxDays := cfg.MaxSubmissionDays
	if maxDays <= 0 {
		maxDays = DefaultMaxSubmissionDays
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}

	result := models.TimelineResult{Status: constants.TimelineValid}

	admission, admissionOK := ParseDate(admissionDate)
	discharge, dischargeOK := ParseDate(dischargeDate)
	if admissionOK && dischargeOK {
		result.DurationHours = discharge.Sub(admission).Hours()
		result.DurationKnown = true
		if result.DurationHours < float64(minHours) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"hospitalization duration %.0f hours is below the %d hour minimum",
				result.DurationHours, minHours))
		}
	}

	if admissionOK {
		submission, submissionOK := ParseDate(submissionDate)
		if !submissionOK {
			// No usable submission date extracted; treat the claim as
			// submitted now.
			submission = now().UTC()
		}
		result.DaysSinceAdmission = int(submission.Sub(admission).Hours() / 24)
		result.SubmissionKnown = true
		if result.DaysSinceAdmission > maxDays {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"claim submitted %d days after admission, exceeding the %d day limit (time-barred)",
				result.DaysSinceAdmission, maxDays))
		}
	}

	if len(result.Warnings) > 0 {
		result.Status = constants.TimelineWarning
	}
	return result
}
