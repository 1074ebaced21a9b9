package detect

import (
	"net/http"
	"strings"

	"github.com/olv-group/prospect-intel/internal/model"
)

// signature maps one response fingerprint to a detected item.
type signature struct {
	category   string
	product    string
	vendor     string
	confidence float64
	match      func(h http.Header, cookies map[string]bool) bool
}

func header(name string) func(http.Header, map[string]bool) bool {
	return func(h http.Header, _ map[string]bool) bool {
		return h.Get(name) != ""
	}
}

func headerPrefix(prefix string) func(http.Header, map[string]bool) bool {
	prefix = strings.ToLower(prefix)
	return func(h http.Header, _ map[string]bool) bool {
		for k := range h {
			if strings.HasPrefix(strings.ToLower(k), prefix) {
				return true
			}
		}
		return false
	}
}

func headerContains(name, substr string) func(http.Header, map[string]bool) bool {
	substr = strings.ToLower(substr)
	return func(h http.Header, _ map[string]bool) bool {
		for _, v := range h.Values(name) {
			if strings.Contains(strings.ToLower(v), substr) {
				return true
			}
		}
		return false
	}
}

func cookie(names ...string) func(http.Header, map[string]bool) bool {
	return func(_ http.Header, cookies map[string]bool) bool {
		for _, n := range names {
			if cookies[strings.ToLower(n)] {
				return true
			}
		}
		return false
	}
}

func anyOf(fns ...func(http.Header, map[string]bool) bool) func(http.Header, map[string]bool) bool {
	return func(h http.Header, c map[string]bool) bool {
		for _, fn := range fns {
			if fn(h, c) {
				return true
			}
		}
		return false
	}
}

// signatures is checked in order; every match contributes an item.
var signatures = []signature{
	// Cloud / edge
	{model.CategoryCloud, "Cloudflare", "Cloudflare", 0.9, header("cf-ray")},
	{model.CategoryCloud, "AWS", "Amazon", 0.8, anyOf(headerPrefix("x-amz-"), headerContains("server", "amazons3"), headerContains("server", "awselb"))},
	{model.CategoryCloud, "Azure", "Microsoft", 0.8, anyOf(header("x-azure-ref"), header("x-ms-request-id"))},
	{model.CategoryCloud, "Google Cloud", "Google", 0.7, anyOf(headerPrefix("x-goog-"), headerContains("server", "google frontend"))},
	{model.CategoryCloud, "Vercel", "Vercel", 0.9, anyOf(header("x-vercel-id"), headerContains("server", "vercel"))},

	// Security
	{model.CategorySecurity, "Cloudflare WAF", "Cloudflare", 0.8, header("cf-ray")},
	{model.CategorySecurity, "HSTS", "", 0.9, header("strict-transport-security")},
	{model.CategorySecurity, "Content Security Policy", "", 0.7, header("content-security-policy")},
	{model.CategorySecurity, "Imperva", "Imperva", 0.8, anyOf(header("x-iinfo"), cookie("incap_ses", "visid_incap"))},

	// CRM
	{model.CategoryCRM, "HubSpot", "HubSpot", 0.9, cookie("hubspotutk", "__hstc")},
	{model.CategoryCRM, "Salesforce", "Salesforce", 0.6, anyOf(header("x-sfdc-request-id"), cookie("browserid_sec"))},

	// ERP
	{model.CategoryERP, "SAP", "SAP", 0.8, cookie("sap-usercontext", "mysapsso2")},
	{model.CategoryERP, "TOTVS Fluig", "TOTVS", 0.7, anyOf(cookie("fluig"), headerContains("x-powered-by", "fluig"))},
	{model.CategoryERP, "TOTVS Protheus", "TOTVS", 0.5, headerContains("x-powered-by", "totvs")},

	// BI / analytics
	{model.CategoryBI, "Google Analytics", "Google", 0.6, cookie("_ga", "_gid")},

	// Integrations
	{model.CategoryIntegrations, "Kong Gateway", "Kong", 0.7, anyOf(headerContains("via", "kong"), headerPrefix("x-kong-"))},

	// Databases are only hinted at by the application stack.
	{model.CategoryDB, "SQL Server", "Microsoft", 0.4, anyOf(headerContains("x-powered-by", "asp.net"), header("x-aspnet-version"))},
	{model.CategoryDB, "MySQL", "Oracle", 0.3, headerContains("x-powered-by", "php")},
}

// classify runs every signature against a response.
func classify(h http.Header, cookies []*http.Cookie) model.DetectedStack {
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[strings.ToLower(c.Name)] = true
	}

	var stack model.DetectedStack
	for _, sig := range signatures {
		if !sig.match(h, names) {
			continue
		}
		conf := sig.confidence
		stack.Add(sig.category, model.DetectedItem{Product: sig.product, Vendor: sig.vendor, Confidence: &conf})
	}
	return stack
}
