// Package stages implements the six pipeline stages. Every stage satisfies
// Stage[In, Out]: it validates its input before any external call, never
// substitutes default data, keeps no state between calls and reports failure
// through the returned error.
package stages

import (
	"context"

	"github.com/ternarybob/trendreel/internal/models"
)

// Stage is a single typed transform of the pipeline.
type Stage[In, Out any] interface {
	Name() models.StageName
	Execute(ctx context.Context, in In) (Out, error)
}

// Func adapts a plain function into a Stage. Used to swap in fakes.
type Func[In, Out any] struct {
	StageName models.StageName
	Fn        func(ctx context.Context, in In) (Out, error)
}

// Name returns the stage name.
func (f Func[In, Out]) Name() models.StageName {
	return f.StageName
}

// Execute calls the wrapped function.
func (f Func[In, Out]) Execute(ctx context.Context, in In) (Out, error) {
	return f.Fn(ctx, in)
}
