package models

// Category is an asset class that gets its own workflow run.
type Category string

const (
	CategoryCrypto Category = "crypto"
	CategoryForex  Category = "forex"
	CategoryStocks Category = "stocks"
)

// AllCategories lists categories in scheduling order.
func AllCategories() []Category {
	return []Category{CategoryCrypto, CategoryForex, CategoryStocks}
}

// IsValidCategory returns true if c is a supported category.
func IsValidCategory(c Category) bool {
	switch c {
	case CategoryCrypto, CategoryForex, CategoryStocks:
		return true
	default:
		return false
	}
}

// ParseCategory converts raw string to a category, reporting whether it is supported.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, IsValidCategory(c)
}

// Title returns the display name used in summaries.
func (c Category) Title() string {
	switch c {
	case CategoryCrypto:
		return "Crypto"
	case CategoryForex:
		return "Forex"
	case CategoryStocks:
		return "Stocks"
	default:
		return string(c)
	}
}
