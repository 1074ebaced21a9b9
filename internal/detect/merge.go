package detect

import (
	"strings"

	"github.com/olv-group/prospect-intel/internal/model"
)

// Merge unions two stacks category by category. Products are compared
// case-insensitively and the first occurrence wins, so items in a take
// precedence over items in b.
func Merge(a, b model.DetectedStack) model.DetectedStack {
	var out model.DetectedStack
	for _, cat := range model.Categories() {
		seen := make(map[string]bool)
		for _, src := range [][]model.DetectedItem{a.Category(cat), b.Category(cat)} {
			for _, item := range src {
				key := strings.ToLower(strings.TrimSpace(item.Product))
				if key == "" || seen[key] {
					continue
				}
				seen[key] = true
				out.Add(cat, item)
			}
		}
	}
	return out
}

// FilterConfidence drops items whose confidence is known and below min.
// Items without a confidence are kept.
func FilterConfidence(s model.DetectedStack, minConfidence float64) model.DetectedStack {
	var out model.DetectedStack
	for _, cat := range model.Categories() {
		for _, item := range s.Category(cat) {
			if item.Confidence != nil && *item.Confidence < minConfidence {
				continue
			}
			out.Add(cat, item)
		}
	}
	return out
}
