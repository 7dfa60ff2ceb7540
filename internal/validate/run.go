package validate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Run executes every validator concurrently against query and combines
// their results. A validator that panics or returns an error contributes
// Result{Passed: true, Confidence: 0} instead of failing the whole check —
// this phase must never block optimization on its own breakage. The
// combined Passed is true only if every validator passed; combined Issues
// is the concatenation of every validator's Issues, in validator order.
func Run(ctx context.Context, validators []Validator, conn Queryer, query string) Result {
	if len(validators) == 0 {
		return Result{Passed: true, Confidence: 0}
	}

	results := make([]Result, len(validators))

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range validators {
		i, v := i, v
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{Passed: true, Confidence: 0}
				}
			}()
			res, verr := v.Validate(gctx, conn, query)
			if verr != nil {
				results[i] = Result{Passed: true, Confidence: 0}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	combined := Result{Passed: true}
	var confSum float64
	for _, r := range results {
		if !r.Passed {
			combined.Passed = false
		}
		combined.Issues = append(combined.Issues, r.Issues...)
		confSum += r.Confidence
	}
	combined.Confidence = confSum / float64(len(results))
	return combined
}
