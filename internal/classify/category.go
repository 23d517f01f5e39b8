// Package classify assigns a semantic category to each difference region
// using classical image statistics. The rule battery is a fixed, priority
// ordered list; evaluation stops at the first matching rule, so the category
// set and the order are invariants rather than extension points.
package classify

// Category is the closed set of semantic difference categories.
type Category string

const (
	CategorySectionSpacing  Category = "section-spacing"
	CategoryColumnSpacing   Category = "column-spacing"
	CategorySpacingMismatch Category = "spacing-mismatch"
	CategoryPaddingMargin   Category = "padding-margin"
	CategoryColorStyle      Category = "color-style"
	CategoryTextContent     Category = "text-content"
	CategoryMissingContent  Category = "missing-content"
	CategoryExtraContent    Category = "extra-content"
	CategoryMissingElement  Category = "missing-element"
	CategoryExtraElement    Category = "extra-element"
	CategoryLayoutMismatch  Category = "layout-mismatch"
)

// FilterCategory is a caller-facing validation bucket. Filters decide which
// categories appear in the final report; they never influence detection.
type FilterCategory string

const (
	FilterLayoutStructure FilterCategory = "layout-and-structure"
	FilterTextContent     FilterCategory = "text-and-content"
	FilterColorsStyles    FilterCategory = "colors-and-styles"
)

// FilterBucket maps a category to the validation filter that controls it.
func (c Category) FilterBucket() FilterCategory {
	switch c {
	case CategoryTextContent, CategoryMissingContent, CategoryExtraContent:
		return FilterTextContent
	case CategoryColorStyle:
		return FilterColorsStyles
	default:
		return FilterLayoutStructure
	}
}

// FilterSet is the set of validation buckets a caller wants reported.
type FilterSet map[FilterCategory]bool

// AllFilters returns a set with every bucket enabled.
func AllFilters() FilterSet {
	return FilterSet{
		FilterLayoutStructure: true,
		FilterTextContent:     true,
		FilterColorsStyles:    true,
	}
}

// Allows reports whether issues of the given category should be included.
func (f FilterSet) Allows(c Category) bool {
	return f[c.FilterBucket()]
}
