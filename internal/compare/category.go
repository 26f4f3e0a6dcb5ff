package compare

import (
	"fmt"
	"strings"
)

// Category is an admission reservation category.
type Category string

const (
	CategoryOpen Category = "OPEN"
	CategoryOBC  Category = "OBC"
	CategorySC   Category = "SC"
	CategoryST   Category = "ST"
	CategoryEWS  Category = "EWS"
	CategoryTFWS Category = "TFWS"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryOpen, CategoryOBC, CategorySC, CategoryST, CategoryEWS, CategoryTFWS}

var categoryAliases = map[string]Category{
	"open":    CategoryOpen,
	"gen":     CategoryOpen,
	"general": CategoryOpen,
	"obc":     CategoryOBC,
	"sc":      CategorySC,
	"st":      CategoryST,
	"ews":     CategoryEWS,
	"tfws":    CategoryTFWS,
}

// CanonicalCategory maps a raw CAP seat code such as GOPENS, LOBCH or
// TFWS onto its category. Seat codes carry a gender prefix (G/L) and a
// university suffix (S/H/O) around the category name.
func CanonicalCategory(raw string) (Category, bool) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if code == "" {
		return "", false
	}
	if c, ok := categoryAliases[code]; ok {
		return c, true
	}

	if len(code) > 2 && (code[0] == 'g' || code[0] == 'l') {
		body := code[1:]
		if c, ok := categoryAliases[body]; ok {
			return c, true
		}
		switch body[len(body)-1] {
		case 's', 'h', 'o':
			if c, ok := categoryAliases[body[:len(body)-1]]; ok {
				return c, true
			}
		}
	}
	return "", false
}

// ParseCategory accepts a category name in any case, or a raw seat code.
// An empty string means OPEN.
func ParseCategory(s string) (Category, error) {
	if strings.TrimSpace(s) == "" {
		return CategoryOpen, nil
	}
	if c, ok := CanonicalCategory(s); ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q (want one of %v)", s, Categories)
}

// Next returns the category after c, wrapping around.
func (c Category) Next() Category {
	for i, cat := range Categories {
		if cat == c {
			return Categories[(i+1)%len(Categories)]
		}
	}
	return CategoryOpen
}
