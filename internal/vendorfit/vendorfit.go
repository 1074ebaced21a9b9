// Package vendorfit recommends vendor products and service packs for a
// company given its maturity scores and detected stack.
package vendorfit

import (
	"strings"

	"github.com/olv-group/prospect-intel/internal/model"
)

// Vendor tags.
const (
	VendorTOTVS  = "TOTVS"
	VendorOLV    = "OLV"
	VendorCustom = "CUSTOM"
)

// Product and pack names.
const (
	ProductProtheus  = "TOTVS Protheus"
	ProductDatasul   = "TOTVS Datasul"
	ProductFluig     = "TOTVS Fluig"
	ProductAnalytics = "TOTVS Analytics"

	PackDiagnostic    = "Diagnóstico & Roadmap"
	PackIntegrations  = "Integrações & Automação"
	PackObservability = "Integração & Observabilidade"
)

// Input is the recommender input. Scores are accepted so that callers pass
// the full maturity picture; the current rules only look at the stack.
type Input struct {
	Vendor string               `json:"vendor" yaml:"vendor"`
	Stack  model.DetectedStack  `json:"detected_stack" yaml:"detected_stack"`
	Scores model.MaturityScores `json:"scores" yaml:"scores"`
}

// Suggest evaluates the vendor's rules in a fixed order. Each rule that
// fires appends its products or packs and exactly one rationale.
func Suggest(in Input) model.VendorFit {
	vendor := strings.ToUpper(strings.TrimSpace(in.Vendor))
	if vendor == "" {
		vendor = VendorCustom
	}
	fit := model.VendorFit{
		Vendor:    vendor,
		Products:  []string{},
		OLVPacks:  []string{},
		Rationale: []string{},
	}

	switch vendor {
	case VendorTOTVS:
		if anyProductContains(in.Stack.ERP, "sap", "oracle") {
			fit.Products = append(fit.Products, ProductProtheus, ProductDatasul)
			fit.Rationale = append(fit.Rationale,
				"ERP atual (SAP/Oracle) com TCO elevado; migração para TOTVS reduz custo de licenças e manutenção")
		}
		if len(in.Stack.Integrations) == 0 {
			fit.Products = append(fit.Products, ProductFluig)
			fit.Rationale = append(fit.Rationale,
				"Nenhuma plataforma de integração detectada; Fluig estrutura BPM e workflows")
		}
		if anyProductContains(in.Stack.BI, "power bi", "tableau") {
			fit.Products = append(fit.Products, ProductAnalytics)
			fit.Rationale = append(fit.Rationale,
				"BI de terceiros detectado; TOTVS Analytics oferece BI integrado ao ERP")
		}
	case VendorOLV:
		fit.OLVPacks = append(fit.OLVPacks, PackDiagnostic)
		fit.Rationale = append(fit.Rationale,
			"Diagnóstico de maturidade e roadmap priorizado de iniciativas")
		fit.OLVPacks = append(fit.OLVPacks, PackIntegrations)
		fit.Rationale = append(fit.Rationale,
			"Integração entre sistemas e automação de processos recorrentes")
	default:
		fit.OLVPacks = append(fit.OLVPacks, PackObservability)
		fit.Rationale = append(fit.Rationale,
			"Pacote genérico de integração e observabilidade para o stack atual")
	}
	return fit
}

func anyProductContains(items []model.DetectedItem, needles ...string) bool {
	for _, it := range items {
		p := strings.ToLower(it.Product)
		for _, n := range needles {
			if strings.Contains(p, n) {
				return true
			}
		}
	}
	return false
}
