package suite

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes for suite loading.
const (
	ErrCodeGeneric  = "E001" // Generic/unknown error
	ErrCodeNotFound = "E005" // Suite file not found
	ErrCodeParse    = "E004" // YAML or CUE syntax error
	ErrCodeSchema   = "E006" // Suite does not match #Suite
	ErrCodeFormat   = "E007" // Unsupported file extension
	ErrCodeLevel    = "E101" // Unknown check level
	ErrCodeType     = "E102" // Unknown constraint type
	ErrCodeMissing  = "E103" // Required constraint field missing
	ErrCodeInvalid  = "E104" // Field value out of range or malformed
	ErrCodeAssert   = "E110" // Assert expression does not compile
	ErrCodeNoChecks = "E111" // Suite or check is empty
)

// Error is a suite loading or validation error. Field is a path into the
// suite such as "checks[0].constraints[2].column".
type Error struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrCodeGeneric.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeGeneric
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(code string, err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Code: code, Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		out.Field = joinPath(path)
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

func joinPath(path []string) string {
	var b strings.Builder
	for _, p := range path {
		if len(p) > 0 && p[0] >= '0' && p[0] <= '9' {
			b.WriteString("[" + p + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
