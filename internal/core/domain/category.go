package domain

import "strings"

// Category is the business category shared by vendors and vouchers.
type Category string

const (
	CategoryPharmacy Category = "PHARMACY"
	CategorySchool   Category = "SCHOOL"
	CategoryHardware Category = "HARDWARE"
	CategoryOther    Category = "OTHER"
)

// Categories lists every valid category.
var Categories = []Category{CategoryPharmacy, CategorySchool, CategoryHardware, CategoryOther}

// ParseCategory normalises s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}
