// Package mcc classifies network merchant category codes into budget
// categories.
package mcc

import (
	"sort"

	"github.com/upb/card-control-plane/models"
)

// Classify maps a merchant category code to its budget category. Unknown
// codes, including the empty string, fall back to the default category.
func Classify(code string) models.BudgetCategory {
	if category, ok := table[code]; ok {
		return category
	}
	return models.DefaultBudgetCategory
}

// Lookup reports the mapped category and whether the code is in the table.
func Lookup(code string) (models.BudgetCategory, bool) {
	category, ok := table[code]
	return category, ok
}

// Codes returns the sorted codes mapped to category.
func Codes(category models.BudgetCategory) []string {
	var codes []string
	for code, c := range table {
		if c == category {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Size returns the number of mapped codes.
func Size() int {
	return len(table)
}
