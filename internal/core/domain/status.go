package domain

import "strings"

// StatusCategory is a coarse bucket for a free-text carrier status.
type StatusCategory string

const (
	CategoryDelivered StatusCategory = "delivered"
	CategoryInTransit StatusCategory = "in_transit"
	CategoryAtDepot   StatusCategory = "at_depot"
	CategoryProblem   StatusCategory = "problem"
	CategoryUnknown   StatusCategory = "unknown"
)

// categoryKeywords is checked in order; the first match wins.
var categoryKeywords = []struct {
	category StatusCategory
	keywords []string
}{
	{CategoryDelivered, []string{"delivered"}},
	{CategoryInTransit, []string{"transit", "sorted"}},
	{CategoryAtDepot, []string{"depot"}},
	{CategoryProblem, []string{"problem", "failed"}},
}

// ClassifyStatus maps a carrier status label onto a StatusCategory by keyword.
func ClassifyStatus(status string) StatusCategory {
	s := strings.ToLower(status)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(s, kw) {
				return c.category
			}
		}
	}
	return CategoryUnknown
}
