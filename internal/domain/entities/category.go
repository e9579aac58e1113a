package entities

import "strings"

// CategoryOther is the catch-all bucket for vendors without a usable category.
const CategoryOther = "Other"

const categorySeparator = ">"

// CategoryDefinition describes a top-level vendor category.
type CategoryDefinition struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	SubCategories []string `json:"sub_categories"`
}

var categoryCatalogue = []CategoryDefinition{
	{Name: "Cakes & Desserts", Color: "#FFF9C4", SubCategories: []string{"Custom Cakes", "Cupcakes", "Cookies", "Dessert Tables"}},
	{Name: "Catering & Food", Color: "#C8E6C9", SubCategories: []string{"Full Service", "Finger Food", "Grazing Table", "Private Chef", "Food Trucks"}},
	{Name: "Balloons & Decor", Color: "#F8BBD0", SubCategories: []string{"Balloon Arches", "Backdrops", "Table Decor", "Themed Styling"}},
	{Name: "Entertainment", Color: "#FFCDD2", SubCategories: []string{"DJs", "Magicians", "Clowns", "Face Painters", "Dancers", "Mascots"}},
	{Name: "Photography & Video", Color: "#FFE0B2", SubCategories: []string{"Photographer", "Videographer", "360 Booth", "Photobooth"}},
	{Name: "Venue Hire", Color: "#BBDEFB", SubCategories: []string{"Indoor", "Outdoor", "Rooftops", "Private Rooms"}},
	{Name: "Kids Activities", Color: "#F8BBD0", SubCategories: []string{"Soft Play", "Bouncy Castle", "Craft Stations", "Puppet Shows"}},
	{Name: "Transport", Color: "#D7CCC8", SubCategories: []string{"Party Buses", "Limos", "Shuttle Vans", "Vintage Cars"}},
	{Name: "Games & Rentals", Color: "#B2DFDB", SubCategories: []string{"Giant Games", "Arcade Machines", "Lawn Games", "Karaoke Machine"}},
}

const defaultCategoryColor = "#D7CCC8"

// Categories returns the known top-level categories in display order.
func Categories() []CategoryDefinition {
	out := make([]CategoryDefinition, len(categoryCatalogue))
	copy(out, categoryCatalogue)
	return out
}

// CategoryColor returns the marker colour for a top-level category.
func CategoryColor(category string) string {
	top := TopLevelCategory(category)
	for _, def := range categoryCatalogue {
		if def.Name == top {
			return def.Color
		}
	}
	return defaultCategoryColor
}

// TopLevelCategory returns the part of a "Parent > Child" category before the
// separator. Empty categories map to CategoryOther.
func TopLevelCategory(category string) string {
	parent, _, _ := strings.Cut(category, categorySeparator)
	parent = strings.TrimSpace(parent)
	if parent == "" {
		return CategoryOther
	}
	return parent
}

// SubCategory returns the part after the separator, or "" for single-level categories.
func SubCategory(category string) string {
	_, child, found := strings.Cut(category, categorySeparator)
	if !found {
		return ""
	}
	return strings.TrimSpace(child)
}
