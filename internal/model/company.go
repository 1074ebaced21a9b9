package model

import (
	"time"
)

// Company represents a Brazilian legal entity tracked by the service.
type Company struct {
	ID        string    `json:"id"`
	CNPJ      string    `json:"cnpj"` // normalized, 14 digits
	Name      string    `json:"name"`
	TradeName string    `json:"trade_name,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	State     string    `json:"state,omitempty"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Analysis is the persisted outcome of a single enrichment run.
type Analysis struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	CNPJ      string         `json:"cnpj"`
	Scoring   ScoringOutput  `json:"scoring"`
	Maturity  MaturityScores `json:"maturity"`
	Fit       VendorFit      `json:"fit"`
	Stack     DetectedStack  `json:"stack"`
	CreatedAt time.Time      `json:"created_at"`
}

// TechMaturity is the latest maturity snapshot for a company. One row per
// company, replaced on every analysis.
type TechMaturity struct {
	CompanyID string         `json:"company_id"`
	Scores    MaturityScores `json:"scores"`
	Stack     DetectedStack  `json:"stack"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MaturityScores holds the six maturity dimensions plus their rounded mean.
type MaturityScores struct {
	Infra      int `json:"infra"`
	Systems    int `json:"systems"`
	Data       int `json:"data"`
	Security   int `json:"security"`
	Automation int `json:"automation"`
	Culture    int `json:"culture"`
	Overall    int `json:"overall"`
}

// VendorFit is a vendor-specific recommendation derived from maturity scores
// and the detected stack. Rationale has one entry per rule that fired.
type VendorFit struct {
	Vendor    string   `json:"vendor"`
	Products  []string `json:"products"`
	OLVPacks  []string `json:"olv_packs"`
	Rationale []string `json:"rationale"`
}
