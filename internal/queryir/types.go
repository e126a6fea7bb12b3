package queryir

import (
	"fmt"

	"github.com/roach88/verity/internal/ir"
)

// Patterns used to classify the text form of a value. They use the subset of
// regular expression syntax shared by RE2 and Postgres.
const (
	integralPattern   = `^\s*[-+]?[0-9]+\s*$`
	fractionalPattern = `^\s*[-+]?([0-9]+\.[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?\s*$`
	numericPattern    = `^\s*[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?\s*$`
	booleanPattern    = `^\s*([Tt][Rr][Uu][Ee]|[Ff][Aa][Ll][Ss][Ee])\s*$`

	// typedPattern matches anything that is numeric or boolean. The String
	// class is its complement.
	typedPattern = `^\s*([-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][-+]?[0-9]+)?|[Tt][Rr][Uu][Ee]|[Ff][Aa][Ll][Ss][Ee])\s*$`
)

// TypeClassPattern returns the pattern whose match count answers a DataType
// request. For ir.TypeString the match count is the complement.
func TypeClassPattern(class string) (string, error) {
	switch class {
	case ir.TypeIntegral:
		return integralPattern, nil
	case ir.TypeFractional:
		return fractionalPattern, nil
	case ir.TypeNumeric:
		return numericPattern, nil
	case ir.TypeBoolean:
		return booleanPattern, nil
	case ir.TypeString:
		return typedPattern, nil
	}
	return "", fmt.Errorf("%w: unknown type class %q", ErrUnsupported, class)
}
