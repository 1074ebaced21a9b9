// Package scorer implements the six-pillar propensity score for Brazilian
// companies.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Pillar keys, in evaluation order.
const (
	PillarFinancial = "financial_health"
	PillarDigital   = "digital_maturity"
	PillarTime      = "time_in_market"
	PillarSize      = "size_capacity"
	PillarActivity  = "recent_activity"
	PillarAI        = "ai_score"
)

// Weights holds the per-pillar weights. They must sum to 1.0.
type Weights struct {
	Financial float64 `json:"financial_health"`
	Digital   float64 `json:"digital_maturity"`
	Time      float64 `json:"time_in_market"`
	Size      float64 `json:"size_capacity"`
	Activity  float64 `json:"recent_activity"`
	AI        float64 `json:"ai_score"`
}

// DefaultWeights returns the fixed production weights (sum = 1.0).
func DefaultWeights() Weights {
	return Weights{
		Financial: 0.30,
		Digital:   0.25,
		Time:      0.15,
		Size:      0.15,
		Activity:  0.10,
		AI:        0.05,
	}
}

// Sum returns the sum of all pillar weights.
func (w Weights) Sum() float64 {
	return w.Financial + w.Digital + w.Time + w.Size + w.Activity + w.AI
}

// ValidateWeights checks that every weight is in [0,1] and that they sum
// to 1.0 within floating-point tolerance.
func ValidateWeights(w Weights) error {
	var errs []string

	weights := []struct {
		name string
		v    float64
	}{
		{PillarFinancial, w.Financial},
		{PillarDigital, w.Digital},
		{PillarTime, w.Time},
		{PillarSize, w.Size},
		{PillarActivity, w.Activity},
		{PillarAI, w.AI},
	}
	for _, p := range weights {
		if p.v < 0 || p.v > 1 {
			errs = append(errs, fmt.Sprintf("%s weight must be between 0 and 1", p.name))
		}
	}

	if sum := w.Sum(); math.Abs(sum-1) > 1e-9 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1.0, got %.4f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
