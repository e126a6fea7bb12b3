package suite

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/verity/internal/check"
)

var (
	valuePath  = cue.ParsePath("value")
	resultPath = cue.ParsePath("result")
)

// compileAssertion compiles expr, a CUE boolean expression over the
// identifier value, e.g. "value >= 0.9 && value <= 1".
//
// The returned assertion panics when evaluation fails; check evaluation
// turns that into an assertion failure.
func compileAssertion(expr string) (check.Assertion, error) {
	ctx := cuecontext.New()
	src := fmt.Sprintf("value: number\nresult: (%s)\n", expr)
	v := ctx.CompileString(src, cue.Filename("assert"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	// result stays incomplete until value is concrete, so check its kind
	// against sample inputs
	kind := cue.BottomKind
	for _, sample := range []float64{0, 1} {
		if k := v.FillPath(valuePath, sample).LookupPath(resultPath).Kind(); k != cue.BottomKind {
			kind = k
			break
		}
	}
	if kind != cue.BoolKind {
		return nil, fmt.Errorf("%q must be a boolean expression, got %s", expr, kind)
	}

	// cue values of one context are not safe for concurrent use
	var mu sync.Mutex
	return func(x float64) bool {
		mu.Lock()
		defer mu.Unlock()
		b, err := v.FillPath(valuePath, x).LookupPath(resultPath).Bool()
		if err != nil {
			panic(fmt.Sprintf("evaluate %q with value %v: %v", expr, x, err))
		}
		return b
	}, nil
}
