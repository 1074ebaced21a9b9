package model

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Stack categories, as used in JSON payloads.
const (
	CategoryERP          = "erp"
	CategoryCRM          = "crm"
	CategoryCloud        = "cloud"
	CategoryBI           = "bi"
	CategoryDB           = "db"
	CategoryIntegrations = "integrations"
	CategorySecurity     = "security"
)

// DetectedItem is a single technology found for a company.
type DetectedItem struct {
	Product    string   `json:"product" yaml:"product"`
	Vendor     string   `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare product name.
func (d *DetectedItem) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*d = DetectedItem{Product: name}
		return nil
	}
	type plain DetectedItem
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = DetectedItem(p)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML (and JSON read as YAML) input.
func (d *DetectedItem) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*d = DetectedItem{}
		if value.Tag != "!!null" {
			d.Product = value.Value
		}
		return nil
	}
	type plain DetectedItem
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = DetectedItem(p)
	return nil
}

// DetectedStack groups detected technologies by category. It is read-only
// input to the maturity aggregator and vendor-fit recommender.
type DetectedStack struct {
	ERP          []DetectedItem `json:"erp" yaml:"erp"`
	CRM          []DetectedItem `json:"crm" yaml:"crm"`
	Cloud        []DetectedItem `json:"cloud" yaml:"cloud"`
	BI           []DetectedItem `json:"bi" yaml:"bi"`
	DB           []DetectedItem `json:"db" yaml:"db"`
	Integrations []DetectedItem `json:"integrations" yaml:"integrations"`
	Security     []DetectedItem `json:"security" yaml:"security"`
}

// UnmarshalJSON decodes each category independently. A missing, null or
// malformed category decodes to an empty list instead of failing the payload.
func (s *DetectedStack) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// Not an object at all (e.g. null or a string): treat as empty.
		*s = DetectedStack{}
		return nil
	}

	var out DetectedStack
	for key, msg := range raw {
		target := out.category(strings.ToLower(key))
		if target == nil {
			continue
		}
		var items []DetectedItem
		if err := json.Unmarshal(msg, &items); err != nil {
			continue
		}
		*target = items
	}
	*s = out
	return nil
}

// UnmarshalYAML applies the same per-category leniency as UnmarshalJSON.
func (s *DetectedStack) UnmarshalYAML(value *yaml.Node) error {
	var out DetectedStack
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			target := out.category(strings.ToLower(value.Content[i].Value))
			if target == nil {
				continue
			}
			var items []DetectedItem
			if err := value.Content[i+1].Decode(&items); err != nil {
				continue
			}
			*target = items
		}
	}
	*s = out
	return nil
}

// Category returns the items for the named category, or nil for an unknown name.
func (s DetectedStack) Category(name string) []DetectedItem {
	if p := s.category(strings.ToLower(name)); p != nil {
		return *p
	}
	return nil
}

// Add appends an item to the named category. Unknown categories are ignored.
func (s *DetectedStack) Add(name string, item DetectedItem) {
	if p := s.category(strings.ToLower(name)); p != nil {
		*p = append(*p, item)
	}
}

// Empty reports whether no category has any item.
func (s DetectedStack) Empty() bool {
	for _, c := range Categories() {
		if len(s.Category(c)) > 0 {
			return false
		}
	}
	return true
}

// Categories lists the known stack categories in display order.
func Categories() []string {
	return []string{
		CategoryERP, CategoryCRM, CategoryCloud, CategoryBI,
		CategoryDB, CategoryIntegrations, CategorySecurity,
	}
}

func (s *DetectedStack) category(name string) *[]DetectedItem {
	switch name {
	case CategoryERP:
		return &s.ERP
	case CategoryCRM:
		return &s.CRM
	case CategoryCloud:
		return &s.Cloud
	case CategoryBI:
		return &s.BI
	case CategoryDB:
		return &s.DB
	case CategoryIntegrations:
		return &s.Integrations
	case CategorySecurity:
		return &s.Security
	default:
		return nil
	}
}
