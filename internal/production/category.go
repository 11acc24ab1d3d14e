package production

import (
	"fmt"
	"strings"
)

// Category selects the length and content balance of a production run.
type Category string

const (
	CategoryShort  Category = "short"
	CategoryMedium Category = "medium"
	CategoryLong   Category = "long"
)

// Share is one slice of the content distribution, e.g. 70% information.
type Share struct {
	Label   string
	Percent int
}

// Profile describes how a category shapes the generated content.
type Profile struct {
	Label        string
	Words        int
	Distribution []Share
}

var profiles = map[Category]Profile{
	CategoryShort: {
		Label: "Quick brief",
		Words: 400,
		Distribution: []Share{
			{Label: "information and data", Percent: 70},
			{Label: "analysis", Percent: 25},
			{Label: "reflective appeal", Percent: 5},
		},
	},
	CategoryMedium: {
		Label: "Analysis",
		Words: 1000,
		Distribution: []Share{
			{Label: "information and data", Percent: 60},
			{Label: "analysis", Percent: 35},
			{Label: "reflective appeal", Percent: 5},
		},
	},
	CategoryLong: {
		Label: "Dossier",
		Words: 2000,
		Distribution: []Share{
			{Label: "introduction", Percent: 5},
			{Label: "development", Percent: 40},
			{Label: "analysis", Percent: 40},
			{Label: "conclusion", Percent: 10},
			{Label: "reflective appeal", Percent: 5},
		},
	},
}

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryShort, CategoryMedium, CategoryLong}
}

// CategoryNames returns the valid category values.
func CategoryNames() []string {
	names := make([]string, 0, len(profiles))
	for _, c := range Categories() {
		names = append(names, string(c))
	}
	return names
}

// ParseCategory maps a user-supplied name to a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profiles[c]; !ok {
		return "", fmt.Errorf("invalid category %q: must be one of %s", name, strings.Join(CategoryNames(), ", "))
	}
	return c, nil
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := profiles[c]
	return ok
}

// Profile returns the category's profile. Unknown categories get the medium profile.
func (c Category) Profile() Profile {
	if p, ok := profiles[c]; ok {
		return p
	}
	return profiles[CategoryMedium]
}

// DistributionText renders the distribution as "70% information and data / 25% analysis / ...".
func (p Profile) DistributionText() string {
	parts := make([]string, 0, len(p.Distribution))
	for _, s := range p.Distribution {
		parts = append(parts, fmt.Sprintf("%d%% %s", s.Percent, s.Label))
	}
	return strings.Join(parts, " / ")
}

// Describe is the one-line prompt summary, e.g. "Quick brief - 400 words - 70% ...".
func (p Profile) Describe() string {
	return fmt.Sprintf("%s - %d words - %s", p.Label, p.Words, p.DistributionText())
}
