// Package alerts evaluates recent analyses against alert rules, honours
// mute windows and delivers notifications to webhook and Slack channels.
package alerts

import (
	"fmt"
	"slices"
	"time"

	"github.com/olv-group/prospect-intel/internal/cnpj"
	"github.com/olv-group/prospect-intel/internal/config"
	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/vendorfit"
)

// Rule names.
const (
	RuleHighPropensity  = "high_propensity"
	RuleERPDisplacement = "erp_displacement"
	RuleLowMaturity     = "low_maturity"
)

// Severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Notification is one triggered alert, ready to be delivered.
type Notification struct {
	Rule       string         `json:"rule"`
	Severity   string         `json:"severity"`
	CompanyID  string         `json:"company_id"`
	AnalysisID string         `json:"analysis_id"`
	CNPJ       string         `json:"cnpj"`
	Vendor     string         `json:"vendor,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// DedupKey identifies the notification across sweeps.
func (n Notification) DedupKey() string {
	return n.Rule + ":" + n.AnalysisID
}

// Scope is the mute lookup key for the notification.
func (n Notification) Scope() model.MuteScope {
	return model.MuteScope{RuleName: n.Rule, CompanyID: n.CompanyID, Vendor: n.Vendor}
}

// Rules holds the thresholds used by Evaluate.
type Rules struct {
	HighScoreThreshold   int
	LowMaturityThreshold int
}

// RulesFromConfig reads thresholds from the alerts config section.
func RulesFromConfig(cfg config.AlertsConfig) Rules {
	return Rules{
		HighScoreThreshold:   cfg.HighScoreThreshold,
		LowMaturityThreshold: cfg.LowMaturityThreshold,
	}
}

// Evaluate returns the notifications triggered by a, in rule order.
func (r Rules) Evaluate(a model.Analysis, now time.Time) []Notification {
	base := Notification{
		CompanyID:  a.CompanyID,
		AnalysisID: a.ID,
		CNPJ:       a.CNPJ,
		Vendor:     a.Fit.Vendor,
		Timestamp:  now,
	}
	var out []Notification

	if a.Scoring.Total >= r.HighScoreThreshold {
		n := base
		n.Rule = RuleHighPropensity
		n.Severity = SeverityHigh
		n.Message = fmt.Sprintf("Empresa %s com %s: score %d (limite %d)",
			cnpj.Format(a.CNPJ), a.Scoring.Classification, a.Scoring.Total, r.HighScoreThreshold)
		n.Details = map[string]any{
			"total":          a.Scoring.Total,
			"classification": a.Scoring.Classification,
			"threshold":      r.HighScoreThreshold,
		}
		out = append(out, n)
	}

	if slices.Contains(a.Fit.Products, vendorfit.ProductProtheus) {
		n := base
		n.Rule = RuleERPDisplacement
		n.Severity = SeverityMedium
		n.Message = fmt.Sprintf("Empresa %s é candidata a migração de ERP para %s",
			cnpj.Format(a.CNPJ), vendorfit.ProductProtheus)
		n.Details = map[string]any{
			"products":  a.Fit.Products,
			"rationale": a.Fit.Rationale,
		}
		out = append(out, n)
	}

	if a.Maturity.Overall < r.LowMaturityThreshold {
		n := base
		n.Rule = RuleLowMaturity
		n.Severity = SeverityLow
		n.Message = fmt.Sprintf("Empresa %s com maturidade tecnológica baixa: %d (limite %d)",
			cnpj.Format(a.CNPJ), a.Maturity.Overall, r.LowMaturityThreshold)
		n.Details = map[string]any{
			"overall":   a.Maturity.Overall,
			"threshold": r.LowMaturityThreshold,
		}
		out = append(out, n)
	}

	return out
}
