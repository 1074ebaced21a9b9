package vendorfit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olv-group/prospect-intel/internal/maturity"
	"github.com/olv-group/prospect-intel/internal/model"
)

func items(names ...string) []model.DetectedItem {
	out := make([]model.DetectedItem, 0, len(names))
	for _, n := range names {
		out = append(out, model.DetectedItem{Product: n})
	}
	return out
}

func TestSuggest_TOTVSDisplacement(t *testing.T) {
	stack := model.DetectedStack{ERP: items("SAP ECC")}
	fit := Suggest(Input{Vendor: "TOTVS", Stack: stack, Scores: maturity.Compute(maturity.Input{Stack: stack})})

	assert.Contains(t, fit.Products, ProductProtheus)
	require.NotEmpty(t, fit.Rationale)
	assert.Contains(t, fit.Rationale[0], "TCO")
}

func TestSuggest_TOTVSRules(t *testing.T) {
	tests := []struct {
		name          string
		stack         model.DetectedStack
		wantProducts  []string
		wantRationale int
	}{
		{
			name:          "empty stack recommends workflow only",
			stack:         model.DetectedStack{},
			wantProducts:  []string{ProductFluig},
			wantRationale: 1,
		},
		{
			name:          "oracle erp with integrations",
			stack:         model.DetectedStack{ERP: items("Oracle E-Business Suite"), Integrations: items("MuleSoft")},
			wantProducts:  []string{ProductProtheus, ProductDatasul},
			wantRationale: 1,
		},
		{
			name:          "all rules in order",
			stack:         model.DetectedStack{ERP: items("sap s/4hana"), BI: items("Tableau")},
			wantProducts:  []string{ProductProtheus, ProductDatasul, ProductFluig, ProductAnalytics},
			wantRationale: 3,
		},
		{
			name:          "power bi case insensitive",
			stack:         model.DetectedStack{BI: items("POWER BI Pro"), Integrations: items("Zapier")},
			wantProducts:  []string{ProductAnalytics},
			wantRationale: 1,
		},
		{
			name:          "non matching erp",
			stack:         model.DetectedStack{ERP: items("TOTVS Protheus"), Integrations: items("n8n"), BI: items("Metabase")},
			wantProducts:  []string{},
			wantRationale: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := Suggest(Input{Vendor: VendorTOTVS, Stack: tt.stack})
			assert.Equal(t, VendorTOTVS, fit.Vendor)
			assert.Equal(t, tt.wantProducts, fit.Products)
			assert.Len(t, fit.Rationale, tt.wantRationale)
			assert.Empty(t, fit.OLVPacks)
		})
	}
}

func TestSuggest_OLV(t *testing.T) {
	for _, stack := range []model.DetectedStack{{}, {ERP: items("SAP"), Integrations: items("Boomi")}} {
		fit := Suggest(Input{Vendor: "olv", Stack: stack})
		assert.Equal(t, VendorOLV, fit.Vendor)
		assert.Equal(t, []string{PackDiagnostic, PackIntegrations}, fit.OLVPacks)
		assert.Len(t, fit.Rationale, 2)
		assert.Empty(t, fit.Products)
	}
}

func TestSuggest_CustomAndUnknown(t *testing.T) {
	for _, vendor := range []string{"CUSTOM", "acme", ""} {
		fit := Suggest(Input{Vendor: vendor, Stack: model.DetectedStack{ERP: items("SAP")}})
		assert.Equal(t, []string{PackObservability}, fit.OLVPacks, vendor)
		assert.Len(t, fit.Rationale, 1)
		assert.Empty(t, fit.Products)
	}
	assert.Equal(t, VendorCustom, Suggest(Input{}).Vendor)
	assert.Equal(t, "ACME", Suggest(Input{Vendor: " acme "}).Vendor)
}

func TestSuggest_Deterministic(t *testing.T) {
	in := Input{Vendor: VendorTOTVS, Stack: model.DetectedStack{ERP: items("SAP"), BI: items("Power BI")}}
	first := Suggest(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Suggest(in))
	}
	for _, r := range first.Rationale {
		assert.False(t, strings.TrimSpace(r) == "")
	}
}
