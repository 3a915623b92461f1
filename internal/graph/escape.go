package graph

import (
	"fmt"
	"strings"

	"github.com/bimatlas/bimatlas/internal/types"
)

// GlobalIds and labels are embedded into Cypher text because AGE cannot
// parametrize label names or property-map literals. Everything embedded is
// validated first; string values additionally go through EscapeString.

// ValidateGlobalID ensures value is safe to embed in a Cypher string
// literal: IFC base64 alphabet plus _$ (hyphen tolerated), no quotes,
// backslashes or braces.
func ValidateGlobalID(value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty global id", types.ErrValidation)
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '_', c == '$', c == '-':
		default:
			return fmt.Errorf("%w: global id %q contains unsafe character %q",
				types.ErrValidation, value, c)
		}
	}
	return nil
}

// ValidateLabel ensures label is a valid AGE vertex/edge label:
// a letter followed by letters and digits.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty label", types.ErrValidation)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return fmt.Errorf("%w: label %q starts with a digit", types.ErrValidation, label)
			}
		default:
			return fmt.Errorf("%w: label %q contains unsafe character %q",
				types.ErrValidation, label, c)
		}
	}
	return nil
}

// EscapeString escapes a value for embedding inside a single-quoted Cypher
// string literal.
func EscapeString(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `'`, `\'`)
	value = strings.ReplaceAll(value, "\n", `\n`)
	return value
}

// revFilter renders the branch- and revision-scoped visibility clause for a
// Cypher alias. AGE has no null properties, so -1 is the open sentinel.
func revFilter(alias string, rev, branchID int64) string {
	return fmt.Sprintf(
		"%s.branch_id = %d AND %s.valid_from_rev <= %d AND (%s.valid_to_rev = -1 OR %s.valid_to_rev > %d)",
		alias, branchID, alias, rev, alias, alias, rev)
}
