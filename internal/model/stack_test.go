package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDetectedStack_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, s DetectedStack)
	}{
		{
			name:    "objects",
			payload: `{"erp":[{"product":"SAP ECC","vendor":"SAP","confidence":0.9}]}`,
			check: func(t *testing.T, s DetectedStack) {
				require.Len(t, s.ERP, 1)
				assert.Equal(t, "SAP ECC", s.ERP[0].Product)
				assert.Equal(t, "SAP", s.ERP[0].Vendor)
				require.NotNil(t, s.ERP[0].Confidence)
				assert.InDelta(t, 0.9, *s.ERP[0].Confidence, 0.0001)
			},
		},
		{
			name:    "bare product names",
			payload: `{"crm":["Salesforce","HubSpot"]}`,
			check: func(t *testing.T, s DetectedStack) {
				require.Len(t, s.CRM, 2)
				assert.Equal(t, "HubSpot", s.CRM[1].Product)
			},
		},
		{
			name:    "null and malformed categories are empty",
			payload: `{"erp":null,"bi":"Power BI","cloud":[{"product":"AWS"}]}`,
			check: func(t *testing.T, s DetectedStack) {
				assert.Empty(t, s.ERP)
				assert.Empty(t, s.BI)
				assert.Len(t, s.Cloud, 1)
			},
		},
		{
			name:    "unknown categories ignored",
			payload: `{"marketing":[{"product":"RD Station"}]}`,
			check: func(t *testing.T, s DetectedStack) {
				assert.True(t, s.Empty())
			},
		},
		{
			name:    "not an object",
			payload: `null`,
			check: func(t *testing.T, s DetectedStack) {
				assert.True(t, s.Empty())
			},
		},
		{
			name:    "case insensitive keys",
			payload: `{"ERP":[{"product":"TOTVS Protheus"}]}`,
			check: func(t *testing.T, s DetectedStack) {
				assert.Len(t, s.ERP, 1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var s DetectedStack
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &s))
			tt.check(t, s)
		})
	}
}

func TestDetectedStack_UnmarshalYAML(t *testing.T) {
	t.Parallel()

	payload := `
erp:
  - SAP ECC
  - product: TOTVS Protheus
    vendor: TOTVS
    confidence: 0.7
crm: oops
db: ~
Security:
  - Cloudflare
marketing:
  - RD Station
`
	var s DetectedStack
	require.NoError(t, yaml.Unmarshal([]byte(payload), &s))

	require.Len(t, s.ERP, 2)
	assert.Equal(t, "SAP ECC", s.ERP[0].Product)
	assert.Equal(t, "TOTVS", s.ERP[1].Vendor)
	require.NotNil(t, s.ERP[1].Confidence)
	assert.InDelta(t, 0.7, *s.ERP[1].Confidence, 0.0001)
	assert.Empty(t, s.CRM)
	assert.Empty(t, s.DB)
	assert.Len(t, s.Security, 1)

	var scalar DetectedStack
	require.NoError(t, yaml.Unmarshal([]byte(`stack`), &scalar))
	assert.True(t, scalar.Empty())
}

func TestDetectedStack_AddAndCategory(t *testing.T) {
	t.Parallel()

	var s DetectedStack
	assert.True(t, s.Empty())

	s.Add("security", DetectedItem{Product: "Cloudflare"})
	s.Add("nope", DetectedItem{Product: "ignored"})

	assert.False(t, s.Empty())
	assert.Len(t, s.Category("SECURITY"), 1)
	assert.Nil(t, s.Category("nope"))
	assert.Len(t, Categories(), 7)
}

func TestMuteScope_Matches(t *testing.T) {
	t.Parallel()

	rule := "high_propensity"
	company := "c-1"
	vendor := "TOTVS"
	other := "other"

	tests := []struct {
		name  string
		mute  AlertMute
		scope MuteScope
		want  bool
	}{
		{"global mute matches anything", AlertMute{}, MuteScope{RuleName: rule, CompanyID: company}, true},
		{"global mute matches empty scope", AlertMute{}, MuteScope{}, true},
		{"rule mute matches rule", AlertMute{RuleName: &rule}, MuteScope{RuleName: rule, CompanyID: company}, true},
		{"rule mute rejects other rule", AlertMute{RuleName: &other}, MuteScope{RuleName: rule}, false},
		{"company mute requires company", AlertMute{CompanyID: &company}, MuteScope{RuleName: rule}, false},
		{"full scope exact", AlertMute{RuleName: &rule, CompanyID: &company, Vendor: &vendor}, MuteScope{RuleName: rule, CompanyID: company, Vendor: vendor}, true},
		{"full scope vendor mismatch", AlertMute{RuleName: &rule, CompanyID: &company, Vendor: &vendor}, MuteScope{RuleName: rule, CompanyID: company, Vendor: "OLV"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.scope.Matches(tt.mute))
		})
	}
}

func TestAlertMute_GlobalAndActive(t *testing.T) {
	t.Parallel()

	rule := "low_maturity"
	m := AlertMute{}
	assert.True(t, m.Global())

	m.RuleName = &rule
	assert.False(t, m.Global())
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("cnpj", "must have 14 digits")
	assert.Equal(t, "invalid cnpj: must have 14 digits", err.Error())
}
