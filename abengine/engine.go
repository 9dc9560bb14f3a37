package abengine

import (
	"fmt"
	"time"

	"github.com/tracklab/abtest-go/abengine/conditions"
	"github.com/tracklab/abtest-go/abengine/creatives"
	"github.com/tracklab/abtest-go/abengine/experiments"
	"github.com/tracklab/abtest-go/abengine/utils"
	"github.com/tracklab/abtest-go/abengine/visitors"
)

// SkipReason says why an experiment did not apply to a visitor.
type SkipReason string

const (
	SkipInactive   SkipReason = "inactive"
	SkipConditions SkipReason = "conditions"
	SkipNoVariants SkipReason = "no_variants"
	SkipPanic      SkipReason = "panic"
)

// Skip records an experiment that was looked at and rejected.
type Skip struct {
	ExperimentID string
	// Reason is a SkipReason or, for out-of-scope experiments, the
	// experiments.ScopeReason.
	Reason string
	// FailedOn is set for SkipConditions.
	FailedOn string
}

// Result is the outcome of Resolve.
type Result struct {
	Matched         bool
	ExperimentID    string
	ExperimentName  string
	SessionDuration int
	VariantIndex    int
	Variant         *experiments.Variant

	// Diagnostics holds malformed patterns met during evaluation. They never
	// change the outcome beyond what the matching rules already define.
	Diagnostics []error
	// Errors holds failures isolated to a single experiment.
	Errors []error
	Skipped []Skip
}

type options struct {
	random utils.Random
}

type Option func(*options)

// WithRandom sets the source used for weighted variant selection.
func WithRandom(r utils.Random) Option {
	return func(o *options) {
		o.random = r
	}
}

// Resolve walks exps in order and returns the variant of the first active
// experiment whose scope and conditions accept visitor. At most one
// experiment applies: a passing experiment without variants ends the walk
// with an unmatched result. None of the inputs are modified.
func Resolve(exps []*experiments.Experiment, now time.Time, visitor *visitors.Visitor, opts ...Option) Result {
	o := options{random: utils.DefaultRandom}
	for _, opt := range opts {
		opt(&o)
	}

	var res Result
	if visitor == nil {
		visitor = &visitors.Visitor{}
	}

	for i, exp := range exps {
		done, err := resolveOne(&res, exp, now, visitor, o.random)
		if err != nil {
			id := ""
			if exp != nil {
				id = exp.ID
			}
			res.Errors = append(res.Errors, fmt.Errorf("experiment %d (%q): %w", i, id, err))
			res.Skipped = append(res.Skipped, Skip{ExperimentID: id, Reason: string(SkipPanic)})
			continue
		}
		if done {
			break
		}
	}
	return res
}

// resolveOne evaluates a single experiment into res. It reports whether the
// walk is over. A panic is turned into an error and leaves res without a match.
func resolveOne(res *Result, exp *experiments.Experiment, now time.Time, visitor *visitors.Visitor, rnd utils.Random) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panicked: %v", r)
			done = false
		}
	}()

	if !exp.Active {
		res.Skipped = append(res.Skipped, Skip{ExperimentID: exp.ID, Reason: string(SkipInactive)})
		return false, nil
	}

	scope := experiments.CheckScope(exp, now, visitor.URL)
	res.Diagnostics = append(res.Diagnostics, scope.Diagnostics...)
	if !scope.InScope {
		res.Skipped = append(res.Skipped, Skip{ExperimentID: exp.ID, Reason: string(scope.Reason)})
		return false, nil
	}

	ev := conditions.Evaluate(exp.Conditions, visitor)
	res.Diagnostics = append(res.Diagnostics, ev.Diagnostics...)
	if !ev.Matched {
		res.Skipped = append(res.Skipped, Skip{ExperimentID: exp.ID, Reason: string(SkipConditions), FailedOn: ev.FailedOn})
		return false, nil
	}

	idx, ok := creatives.Select(exp.Variants, rnd)
	if !ok {
		res.Skipped = append(res.Skipped, Skip{ExperimentID: exp.ID, Reason: string(SkipNoVariants)})
		return true, nil
	}

	variant := exp.Variants[idx]
	res.Matched = true
	res.ExperimentID = exp.ID
	res.ExperimentName = exp.Name
	res.SessionDuration = exp.SessionDurationMinutes()
	res.VariantIndex = idx
	res.Variant = &variant
	return true, nil
}
