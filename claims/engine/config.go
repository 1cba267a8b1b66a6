package engine

import (
	"strings"

	"github.com/medassure/claims-engine/claims/timeline"
	"github.com/medassure/claims-engine/conf"
	"github.com/medassure/claims-engine/log"
)

type Config struct {
	TimelineMinHours int `conf:"CLAIMS_TIMELINE_MIN_HOURS" conf_default:"24"`
	TimelineMaxDays  int `conf:"CLAIMS_TIMELINE_MAX_DAYS" conf_default:"90"`

	// TimelineHardFail escalates timeline warnings to hard rejection reasons
	// for callers that need the stricter policy.
	TimelineHardFail bool `conf:"CLAIMS_TIMELINE_HARD_FAIL" conf_default:"false"`

	MinPolicyNumberLen int `conf:"CLAIMS_MIN_POLICY_NUMBER_LEN" conf_default:"10"`

	// NonPayableCategories overrides the billed-item categories excluded from
	// reimbursement, comma-separated. Blank keeps the calculator's defaults.
	NonPayableCategories string `conf:"CLAIMS_NON_PAYABLE_CATEGORIES"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}

	log.Engine.Info("Successfully loaded configuration for the adjudication engine.")

	return cfg, nil
}

func (c *Config) timelineConfig() timeline.Config {
	return timeline.Config{
		MinStayHours:      c.TimelineMinHours,
		MaxSubmissionDays: c.TimelineMaxDays,
	}
}

// nonPayableCategories splits the configured override into the slice the
// calculator takes. Nil (no override) preserves the calculator's defaults.
func (c *Config) nonPayableCategories() []string {
	if strings.TrimSpace(c.NonPayableCategories) == "" {
		return nil
	}
	var categories []string
	for _, category := range strings.Split(c.NonPayableCategories, ",") {
		if category = strings.TrimSpace(category); category != "" {
			categories = append(categories, category)
		}
	}
	return categories
}
