package policy

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/upb/card-control-plane/internal/expression"
)

// SplitScope separates an optional merchant scope from the boolean
// expression. Only the first colon splits; both halves are trimmed. An
// expression without a colon, or with an empty prefix, is unscoped.
func SplitScope(expr string) (scope, body string) {
	idx := strings.IndexByte(expr, ':')
	if idx < 0 {
		return "", strings.TrimSpace(expr)
	}
	return strings.TrimSpace(expr[:idx]), strings.TrimSpace(expr[idx+1:])
}

// MerchantMatches compares a merchant against a policy scope using Unicode
// case folding.
func MerchantMatches(scope, merchant string) bool {
	fold := cases.Fold()
	return fold.String(merchant) == fold.String(scope)
}

// Validate checks that the boolean part of a policy expression compiles.
func Validate(expr string) error {
	_, body := SplitScope(expr)
	_, err := expression.Compile(body)
	return err
}
