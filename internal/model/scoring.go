package model

import "time"

// Registration statuses reported by the federal registry (situação cadastral).
const (
	RegistrationActive    = "ATIVA"
	RegistrationSuspended = "SUSPENSA"
	RegistrationUnfit     = "INAPTA"
	RegistrationClosed    = "BAIXADA"
	RegistrationVoid      = "NULA"
)

// Company size brackets (porte).
const (
	SizeMicro  = "ME"
	SizeSmall  = "EPP"
	SizeOthers = "DEMAIS"
)

// ScoringInput aggregates the registry, tax and digital-presence facts used
// by the propensity scorer. Pointer fields are optional.
type ScoringInput struct {
	RegistrationStatus string     `json:"registration_status" yaml:"registration_status"`
	IncorporationDate  *time.Time `json:"incorporation_date,omitempty" yaml:"incorporation_date,omitempty"`
	ShareCapital       float64    `json:"share_capital" yaml:"share_capital"`
	Employees          *int       `json:"employees,omitempty" yaml:"employees,omitempty"`
	CompanySize        string     `json:"company_size,omitempty" yaml:"company_size,omitempty"`

	// Tax regime.
	SimplesNacional bool `json:"simples_nacional" yaml:"simples_nacional"`
	MEI             bool `json:"mei" yaml:"mei"`

	// Digital presence.
	HasWebsite   bool `json:"has_website" yaml:"has_website"`
	HasLinkedIn  bool `json:"has_linkedin" yaml:"has_linkedin"`
	HasInstagram bool `json:"has_instagram" yaml:"has_instagram"`
	HasFacebook  bool `json:"has_facebook" yaml:"has_facebook"`
	HasEcommerce bool `json:"has_ecommerce" yaml:"has_ecommerce"`

	// Recent activity.
	LastActivityAt *time.Time `json:"last_activity_at,omitempty" yaml:"last_activity_at,omitempty"`
	RecentSignals  int        `json:"recent_signals" yaml:"recent_signals"`

	// AIScore is computed elsewhere and passed through as-is (0-100).
	AIScore *float64 `json:"ai_score,omitempty" yaml:"ai_score,omitempty"`
}

// PillarResult is one weighted component of the propensity score.
type PillarResult struct {
	Key       string  `json:"key"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale"`
}

// ScoringOutput is the result of a propensity calculation.
type ScoringOutput struct {
	Pillars        []PillarResult `json:"pillars"`
	Total          int            `json:"total"`
	Classification string         `json:"classification"`
	Justification  string         `json:"justification"`
}
