package scorer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/olv-group/prospect-intel/internal/model"
	"github.com/olv-group/prospect-intel/internal/ptbr"
)

// Classification labels, from best to worst.
const (
	ClassHigh     = "Alto Potencial"
	ClassGood     = "Bom Potencial"
	ClassModerate = "Potencial Moderado"
	ClassLow      = "Baixo Potencial"
)

// NeutralAIScore is used when no AI score was supplied.
const NeutralAIScore = 50

// Scorer computes propensity scores with a fixed set of weights.
type Scorer struct {
	weights Weights
}

// New creates a Scorer. The weights are validated up front so that
// Calculate itself can never fail.
func New(w Weights) (*Scorer, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

var defaultScorer = &Scorer{weights: DefaultWeights()}

// Calculate scores in with the default weights. asOf is the reference date
// for age and recency pillars.
func Calculate(in model.ScoringInput, asOf time.Time) model.ScoringOutput {
	return defaultScorer.Calculate(in, asOf)
}

// Calculate scores in. It is deterministic for a given input and asOf.
func (s *Scorer) Calculate(in model.ScoringInput, asOf time.Time) model.ScoringOutput {
	pillars := []model.PillarResult{
		financialHealth(in, s.weights.Financial),
		digitalMaturity(in, s.weights.Digital),
		timeInMarket(in, asOf, s.weights.Time),
		sizeCapacity(in, s.weights.Size),
		recentActivity(in, asOf, s.weights.Activity),
		aiScore(in, s.weights.AI),
	}

	var weighted float64
	for _, p := range pillars {
		weighted += p.Score * p.Weight
	}
	total := int(math.Round(clamp(weighted)))

	return model.ScoringOutput{
		Pillars:        pillars,
		Total:          total,
		Classification: Classify(total),
		Justification:  justify(pillars),
	}
}

// Classify maps a total score to its label. Bounds are inclusive.
func Classify(total int) string {
	switch {
	case total >= 80:
		return ClassHigh
	case total >= 60:
		return ClassGood
	case total >= 40:
		return ClassModerate
	default:
		return ClassLow
	}
}

func financialHealth(in model.ScoringInput, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarFinancial, Label: "Saúde Financeira", Weight: w}

	status := strings.ToUpper(strings.TrimSpace(in.RegistrationStatus))
	if status != model.RegistrationActive {
		if status == "" {
			status = "não informada"
		}
		p.Rationale = fmt.Sprintf("Situação cadastral irregular (%s)", status)
		return p
	}

	c := in.ShareCapital
	switch {
	case c >= 10_000_000:
		p.Score = 100
	case c >= 1_000_000:
		p.Score = 80
	case c >= 100_000:
		p.Score = 60
	case c >= 10_000:
		p.Score = 40
	case c > 0:
		p.Score = 25
	default:
		p.Score = 30
	}
	if c > 0 {
		p.Rationale = "Capital social de " + ptbr.FormatCurrency(c)
	} else {
		p.Rationale = "Capital social não informado"
	}

	switch {
	case in.MEI && p.Score > 30:
		p.Score = 30
		p.Rationale += "; enquadramento MEI limita a capacidade"
	case in.SimplesNacional && p.Score > 70:
		p.Score = 70
		p.Rationale += "; optante do Simples Nacional"
	}
	return p
}

func digitalMaturity(in model.ScoringInput, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarDigital, Label: "Maturidade Digital", Weight: w}

	channels := []struct {
		has    bool
		points float64
		name   string
	}{
		{in.HasWebsite, 40, "site"},
		{in.HasLinkedIn, 25, "LinkedIn"},
		{in.HasInstagram, 15, "Instagram"},
		{in.HasFacebook, 10, "Facebook"},
		{in.HasEcommerce, 10, "e-commerce"},
	}
	var found []string
	for _, ch := range channels {
		if ch.has {
			p.Score += ch.points
			found = append(found, ch.name)
		}
	}
	p.Score = clamp(p.Score)

	if len(found) == 0 {
		p.Rationale = "Sem presença digital identificada"
	} else {
		p.Rationale = "Presença digital: " + strings.Join(found, ", ")
	}
	return p
}

func timeInMarket(in model.ScoringInput, asOf time.Time, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarTime, Label: "Tempo de Mercado", Weight: w}

	if in.IncorporationDate == nil {
		p.Score = 40
		p.Rationale = "Data de abertura não informada"
		return p
	}

	years := fullYears(*in.IncorporationDate, asOf)
	switch {
	case years >= 20:
		p.Score = 100
	case years >= 10:
		p.Score = 85
	case years >= 5:
		p.Score = 70
	case years >= 2:
		p.Score = 50
	case years >= 1:
		p.Score = 30
	default:
		p.Score = 15
	}
	if years == 1 {
		p.Rationale = "Empresa com 1 ano de mercado"
	} else {
		p.Rationale = fmt.Sprintf("Empresa com %d anos de mercado", max(years, 0))
	}
	return p
}

func sizeCapacity(in model.ScoringInput, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarSize, Label: "Porte e Capacidade", Weight: w}

	if in.Employees != nil && *in.Employees > 0 {
		n := *in.Employees
		switch {
		case n >= 500:
			p.Score = 100
		case n >= 100:
			p.Score = 80
		case n >= 50:
			p.Score = 65
		case n >= 10:
			p.Score = 45
		default:
			p.Score = 25
		}
		p.Rationale = fmt.Sprintf("%s funcionários", ptbr.FormatNumber(float64(n), 0))
		return p
	}

	switch strings.ToUpper(strings.TrimSpace(in.CompanySize)) {
	case model.SizeOthers:
		p.Score = 70
		p.Rationale = "Porte DEMAIS (médio/grande)"
	case model.SizeSmall:
		p.Score = 45
		p.Rationale = "Porte EPP"
	case model.SizeMicro:
		p.Score = 25
		p.Rationale = "Porte ME"
	default:
		p.Score = 30
		p.Rationale = "Porte não informado"
	}
	return p
}

func recentActivity(in model.ScoringInput, asOf time.Time, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarActivity, Label: "Atividade Recente", Weight: w}

	if in.LastActivityAt == nil {
		p.Score = 20
		p.Rationale = "Sem registro de atividade recente"
	} else {
		days := int(asOf.Sub(*in.LastActivityAt).Hours() / 24)
		switch {
		case days <= 30:
			p.Score = 100
		case days <= 90:
			p.Score = 75
		case days <= 180:
			p.Score = 50
		case days <= 365:
			p.Score = 25
		default:
			p.Score = 10
		}
		p.Rationale = fmt.Sprintf("Última atividade há %d dias", max(days, 0))
	}

	if in.RecentSignals > 0 {
		p.Score = clamp(p.Score + math.Min(float64(in.RecentSignals)*5, 20))
		p.Rationale += fmt.Sprintf(" e %d sinais recentes", in.RecentSignals)
	}
	return p
}

func aiScore(in model.ScoringInput, w float64) model.PillarResult {
	p := model.PillarResult{Key: PillarAI, Label: "Score de IA", Weight: w}

	if in.AIScore == nil || math.IsNaN(*in.AIScore) {
		p.Score = NeutralAIScore
		p.Rationale = "Score de IA indisponível (neutro)"
		return p
	}
	p.Score = clamp(*in.AIScore)
	p.Rationale = fmt.Sprintf("Score de IA: %s", ptbr.FormatNumber(p.Score, 0))
	return p
}

// justify combines the rationale of the pillar adding the most weighted
// points with the one losing the most. Ties keep the earlier pillar.
func justify(pillars []model.PillarResult) string {
	if len(pillars) == 0 {
		return ""
	}
	top, worst := 0, 0
	for i, p := range pillars {
		if p.Score*p.Weight > pillars[top].Score*pillars[top].Weight {
			top = i
		}
		if (100-p.Score)*p.Weight > (100-pillars[worst].Score)*pillars[worst].Weight {
			worst = i
		}
	}
	return fmt.Sprintf("Destaque: %s. Ponto de atenção: %s.", pillars[top].Rationale, pillars[worst].Rationale)
}

func fullYears(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
