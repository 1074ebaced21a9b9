// Package maturity derives technology maturity dimensions from a detected
// stack.
package maturity

import (
	"math"

	"github.com/olv-group/prospect-intel/internal/model"
)

// CulturePlaceholder is the fixed culture score. No detected signal informs
// culture yet.
const CulturePlaceholder = 30

// Input is the aggregator input. Signals are accepted for forward
// compatibility and do not affect the result.
type Input struct {
	Stack   model.DetectedStack `json:"detected_stack" yaml:"detected_stack"`
	Signals map[string]any      `json:"signals,omitempty" yaml:"signals,omitempty"`
}

// Compute scores the six maturity dimensions from category presence and
// averages them into Overall. Every value is within [0,100].
func Compute(in Input) model.MaturityScores {
	s := in.Stack
	has := func(items []model.DetectedItem) bool { return len(items) > 0 }

	infra := bonus(has(s.Cloud), 60, 20) + bonus(has(s.Security), 20, 0)
	systems := bonus(has(s.ERP), 40, 10) + bonus(has(s.CRM), 20, 0) + bonus(has(s.BI), 20, 0)
	data := bonus(has(s.BI), 40, 10) + bonus(has(s.DB), 20, 0)
	security := bonus(has(s.Security), 60, 20)
	automation := bonus(has(s.Integrations), 50, 15)

	out := model.MaturityScores{
		Infra:      clamp(infra),
		Systems:    clamp(systems),
		Data:       clamp(data),
		Security:   clamp(security),
		Automation: clamp(automation),
		Culture:    clamp(CulturePlaceholder),
	}
	sum := out.Infra + out.Systems + out.Data + out.Security + out.Automation + out.Culture
	out.Overall = clamp(int(math.Round(float64(sum) / 6)))
	return out
}

func bonus(present bool, yes, no int) int {
	if present {
		return yes
	}
	return no
}

func clamp(v int) int {
	return min(max(v, 0), 100)
}
