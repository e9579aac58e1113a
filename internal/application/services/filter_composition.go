package services

import (
	"strings"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
)

// Compose groups vendors by top-level category and applies the filter
// state. It is pure: the inputs are not modified and equal inputs give
// equal output. Groups appear in encounter order and stay present even
// when every vendor in them is filtered out.
func Compose(vendors []*entities.Vendor, filters entities.FilterState) []entities.CategoryGroup {
	groups := make([]entities.CategoryGroup, 0)
	index := make(map[string]int)

	for _, vendor := range vendors {
		if vendor == nil {
			continue
		}
		category := vendor.TopLevelCategory()
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, entities.CategoryGroup{Category: category, Vendors: []*entities.Vendor{}})
		}
		if Matches(vendor, filters) {
			groups[i].Vendors = append(groups[i].Vendors, vendor)
		}
	}

	return groups
}

// Matches reports whether a single vendor passes every filter dimension.
// The budget ceiling is informational and never excludes.
func Matches(vendor *entities.Vendor, filters entities.FilterState) bool {
	return matchesCategory(vendor, filters.CategoryFilter) &&
		matchesDate(vendor, filters.DateFilter) &&
		matchesLocation(vendor, filters.LocationSubstring) &&
		matchesFacets(vendor, filters.SelectedFacets(vendor.TopLevelCategory()))
}

// Vendors in Other are shown whatever category is selected.
func matchesCategory(vendor *entities.Vendor, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	top := vendor.TopLevelCategory()
	if top == entities.CategoryOther {
		return true
	}
	if strings.TrimSpace(vendor.Category) == filter {
		return true
	}

	child := entities.SubCategory(filter)
	// A top-level filter also matches that parent's sub-categories.
	if child == "" {
		return top == entities.TopLevelCategory(filter)
	}
	return strings.Contains(strings.ToLower(vendor.Category), strings.ToLower(child))
}

func matchesDate(vendor *entities.Vendor, date *entities.CalendarDate) bool {
	return date == nil || !vendor.IsUnavailableOn(*date)
}

func matchesLocation(vendor *entities.Vendor, substring string) bool {
	substring = strings.TrimSpace(substring)
	if substring == "" {
		return true
	}
	return strings.Contains(strings.ToLower(vendor.LocationText), strings.ToLower(substring))
}

// A facet the vendor does not declare counts as false.
func matchesFacets(vendor *entities.Vendor, selected []string) bool {
	for _, facet := range selected {
		if !vendor.Facet(facet) {
			return false
		}
	}
	return true
}

// FlattenGroups returns the vendors of every group in group order.
func FlattenGroups(groups []entities.CategoryGroup) []*entities.Vendor {
	var out []*entities.Vendor
	for _, g := range groups {
		out = append(out, g.Vendors...)
	}
	return out
}
