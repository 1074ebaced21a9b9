package scorer

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olv-group/prospect-intel/internal/model"
)

var asOf = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func pillar(t *testing.T, out model.ScoringOutput, key string) model.PillarResult {
	t.Helper()
	for _, p := range out.Pillars {
		if p.Key == key {
			return p
		}
	}
	t.Fatalf("pillar %s not found", key)
	return model.PillarResult{}
}

func TestCalculate_FullProfile(t *testing.T) {
	in := model.ScoringInput{
		RegistrationStatus: "ATIVA",
		IncorporationDate:  ptr(time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC)),
		ShareCapital:       2_000_000,
		Employees:          ptr(120),
		HasWebsite:         true,
		HasLinkedIn:        true,
		LastActivityAt:     ptr(asOf.AddDate(0, 0, -10)),
		RecentSignals:      2,
		AIScore:            ptr(80.0),
	}

	out := Calculate(in, asOf)

	require.Len(t, out.Pillars, 6)
	assert.Equal(t, []string{PillarFinancial, PillarDigital, PillarTime, PillarSize, PillarActivity, PillarAI},
		[]string{out.Pillars[0].Key, out.Pillars[1].Key, out.Pillars[2].Key, out.Pillars[3].Key, out.Pillars[4].Key, out.Pillars[5].Key})

	assert.Equal(t, 80.0, pillar(t, out, PillarFinancial).Score)
	assert.Equal(t, 65.0, pillar(t, out, PillarDigital).Score)
	assert.Equal(t, 85.0, pillar(t, out, PillarTime).Score)
	assert.Equal(t, 80.0, pillar(t, out, PillarSize).Score)
	assert.Equal(t, 100.0, pillar(t, out, PillarActivity).Score)
	assert.Equal(t, 80.0, pillar(t, out, PillarAI).Score)

	assert.Equal(t, 79, out.Total)
	assert.Equal(t, ClassGood, out.Classification)
	assert.Equal(t, "Destaque: Capital social de R$ 2.000.000,00. Ponto de atenção: Presença digital: site, LinkedIn.", out.Justification)
}

func TestCalculate_EmptyInput(t *testing.T) {
	out := Calculate(model.ScoringInput{}, asOf)

	assert.Equal(t, 0.0, pillar(t, out, PillarFinancial).Score)
	assert.Equal(t, 0.0, pillar(t, out, PillarDigital).Score)
	assert.Equal(t, 40.0, pillar(t, out, PillarTime).Score)
	assert.Equal(t, 30.0, pillar(t, out, PillarSize).Score)
	assert.Equal(t, 20.0, pillar(t, out, PillarActivity).Score)
	assert.Equal(t, float64(NeutralAIScore), pillar(t, out, PillarAI).Score)

	assert.Equal(t, 15, out.Total)
	assert.Equal(t, ClassLow, out.Classification)
	assert.Equal(t, "Destaque: Data de abertura não informada. Ponto de atenção: Situação cadastral irregular (não informada).", out.Justification)
}

func TestFinancialHealth(t *testing.T) {
	tests := []struct {
		name string
		in   model.ScoringInput
		want float64
	}{
		{"irregular status", model.ScoringInput{RegistrationStatus: "BAIXADA", ShareCapital: 50_000_000}, 0},
		{"lowercase active", model.ScoringInput{RegistrationStatus: "ativa", ShareCapital: 10_000_000}, 100},
		{"one million", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 1_000_000}, 80},
		{"hundred thousand", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 100_000}, 60},
		{"ten thousand", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 10_000}, 40},
		{"small capital", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 500}, 25},
		{"unknown capital", model.ScoringInput{RegistrationStatus: "ATIVA"}, 30},
		{"mei cap", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 5_000_000, MEI: true}, 30},
		{"simples cap", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 20_000_000, SimplesNacional: true}, 70},
		{"simples below cap", model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 100_000, SimplesNacional: true}, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := financialHealth(tt.in, 0.3)
			assert.Equal(t, tt.want, p.Score)
			assert.NotEmpty(t, p.Rationale)
		})
	}
}

func TestTimeInMarket(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{"twenty years", asOf.AddDate(-20, 0, 0), 100},
		{"ten years", asOf.AddDate(-10, 0, 0), 85},
		{"just under ten", asOf.AddDate(-10, 0, 1), 70},
		{"two years", asOf.AddDate(-2, 0, 0), 50},
		{"one year", asOf.AddDate(-1, 0, 0), 30},
		{"six months", asOf.AddDate(0, -6, 0), 15},
		{"future date", asOf.AddDate(1, 0, 0), 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := timeInMarket(model.ScoringInput{IncorporationDate: ptr(tt.date)}, asOf, 0.15)
			assert.Equal(t, tt.want, p.Score)
		})
	}
}

func TestSizeCapacity(t *testing.T) {
	tests := []struct {
		name string
		in   model.ScoringInput
		want float64
	}{
		{"large", model.ScoringInput{Employees: ptr(500)}, 100},
		{"hundred", model.ScoringInput{Employees: ptr(100)}, 80},
		{"fifty", model.ScoringInput{Employees: ptr(50)}, 65},
		{"ten", model.ScoringInput{Employees: ptr(10)}, 45},
		{"one", model.ScoringInput{Employees: ptr(1)}, 25},
		{"zero employees falls back to size", model.ScoringInput{Employees: ptr(0), CompanySize: "DEMAIS"}, 70},
		{"epp", model.ScoringInput{CompanySize: "epp"}, 45},
		{"me", model.ScoringInput{CompanySize: "ME"}, 25},
		{"unknown", model.ScoringInput{}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sizeCapacity(tt.in, 0.15).Score)
		})
	}
}

func TestRecentActivity(t *testing.T) {
	tests := []struct {
		name string
		in   model.ScoringInput
		want float64
	}{
		{"thirty days", model.ScoringInput{LastActivityAt: ptr(asOf.AddDate(0, 0, -30))}, 100},
		{"ninety days", model.ScoringInput{LastActivityAt: ptr(asOf.AddDate(0, 0, -90))}, 75},
		{"half year", model.ScoringInput{LastActivityAt: ptr(asOf.AddDate(0, 0, -180))}, 50},
		{"one year", model.ScoringInput{LastActivityAt: ptr(asOf.AddDate(0, 0, -365))}, 25},
		{"stale", model.ScoringInput{LastActivityAt: ptr(asOf.AddDate(-2, 0, 0))}, 10},
		{"unknown", model.ScoringInput{}, 20},
		{"signals bonus", model.ScoringInput{RecentSignals: 2}, 30},
		{"signals bonus capped", model.ScoringInput{RecentSignals: 10}, 40},
		{"bonus clamped at 100", model.ScoringInput{LastActivityAt: ptr(asOf), RecentSignals: 3}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recentActivity(tt.in, asOf, 0.1).Score)
		})
	}
}

func TestDigitalAndAIScore(t *testing.T) {
	all := model.ScoringInput{HasWebsite: true, HasLinkedIn: true, HasInstagram: true, HasFacebook: true, HasEcommerce: true}
	assert.Equal(t, 100.0, digitalMaturity(all, 0.25).Score)
	assert.Equal(t, "Sem presença digital identificada", digitalMaturity(model.ScoringInput{}, 0.25).Rationale)

	assert.Equal(t, 100.0, aiScore(model.ScoringInput{AIScore: ptr(150.0)}, 0.05).Score)
	assert.Equal(t, 0.0, aiScore(model.ScoringInput{AIScore: ptr(-5.0)}, 0.05).Score)
	assert.Equal(t, float64(NeutralAIScore), aiScore(model.ScoringInput{AIScore: ptr(math.NaN())}, 0.05).Score)
}

func TestClassify_InclusiveBounds(t *testing.T) {
	tests := []struct {
		total int
		want  string
	}{
		{100, ClassHigh},
		{80, ClassHigh},
		{79, ClassGood},
		{60, ClassGood},
		{59, ClassModerate},
		{40, ClassModerate},
		{39, ClassLow},
		{0, ClassLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.total), "total %d", tt.total)
	}
}

func TestCalculate_TotalIsRoundedWeightedSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"ATIVA", "ATIVA", "INAPTA", "", "BAIXADA"}
	sizes := []string{"ME", "EPP", "DEMAIS", ""}

	for i := 0; i < 500; i++ {
		in := model.ScoringInput{
			RegistrationStatus: statuses[rng.Intn(len(statuses))],
			ShareCapital:       rng.Float64() * 20_000_000,
			CompanySize:        sizes[rng.Intn(len(sizes))],
			SimplesNacional:    rng.Intn(2) == 0,
			MEI:                rng.Intn(4) == 0,
			HasWebsite:         rng.Intn(2) == 0,
			HasLinkedIn:        rng.Intn(2) == 0,
			HasInstagram:       rng.Intn(2) == 0,
			HasFacebook:        rng.Intn(2) == 0,
			HasEcommerce:       rng.Intn(2) == 0,
			RecentSignals:      rng.Intn(8),
		}
		if rng.Intn(2) == 0 {
			in.IncorporationDate = ptr(asOf.AddDate(-rng.Intn(40), 0, 0))
		}
		if rng.Intn(2) == 0 {
			in.Employees = ptr(rng.Intn(1000))
		}
		if rng.Intn(2) == 0 {
			in.LastActivityAt = ptr(asOf.AddDate(0, 0, -rng.Intn(800)))
		}
		if rng.Intn(2) == 0 {
			in.AIScore = ptr(rng.Float64()*140 - 20)
		}

		out := Calculate(in, asOf)

		var sum, weights float64
		for _, p := range out.Pillars {
			assert.GreaterOrEqual(t, p.Score, 0.0)
			assert.LessOrEqual(t, p.Score, 100.0)
			sum += p.Score * p.Weight
			weights += p.Weight
		}
		assert.InDelta(t, 1.0, weights, 1e-9)
		assert.Equal(t, int(math.Round(sum)), out.Total)
		assert.GreaterOrEqual(t, out.Total, 0)
		assert.LessOrEqual(t, out.Total, 100)
		assert.Equal(t, Classify(out.Total), out.Classification)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	in := model.ScoringInput{RegistrationStatus: "ATIVA", ShareCapital: 250_000, HasWebsite: true, RecentSignals: 1}
	assert.Equal(t, Calculate(in, asOf), Calculate(in, asOf))
}

func TestNew_ValidatesWeights(t *testing.T) {
	_, err := New(Weights{Financial: 0.5, Digital: 0.6})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")

	_, err = New(Weights{Financial: -0.1, Digital: 1.1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0 and 1")

	s, err := New(DefaultWeights())
	require.NoError(t, err)
	assert.Equal(t, Calculate(model.ScoringInput{}, asOf), s.Calculate(model.ScoringInput{}, asOf))
}

func TestDefaultWeights(t *testing.T) {
	require.NoError(t, ValidateWeights(DefaultWeights()))
	assert.InDelta(t, 1.0, DefaultWeights().Sum(), 1e-9)
}
