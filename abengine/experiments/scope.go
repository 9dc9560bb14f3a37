package experiments

import (
	"fmt"
	"strings"
	"time"

	"github.com/tracklab/abtest-go/abengine/patterns"
	"github.com/tracklab/abtest-go/abengine/utils"
)

// ScopeReason says why an experiment is out of scope.
type ScopeReason string

const (
	NotStarted     ScopeReason = "not_started"
	Ended          ScopeReason = "ended"
	TargetMismatch ScopeReason = "target_mismatch"
	Excluded       ScopeReason = "excluded"
)

type ScopeResult struct {
	InScope     bool
	Reason      ScopeReason
	Diagnostics []error
}

// IsInScope reports whether exp applies to url at now. The returned errors
// describe malformed URL patterns.
func IsInScope(exp *Experiment, now time.Time, url string) (bool, []error) {
	res := CheckScope(exp, now, url)
	return res.InScope, res.Diagnostics
}

// CheckScope applies the schedule window and the target/exclude URL patterns.
// Both window bounds are inclusive.
func CheckScope(exp *Experiment, now time.Time, url string) ScopeResult {
	var res ScopeResult

	if isSet(exp.StartDate) && now.Before(exp.StartDate.Time) {
		res.Reason = NotStarted
		return res
	}
	if isSet(exp.EndDate) && now.After(exp.EndDate.Time) {
		res.Reason = Ended
		return res
	}

	if strings.TrimSpace(exp.TargetURLPattern) != "" {
		ok, err := patterns.Match(url, exp.TargetURLPattern)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, fmt.Errorf("target url pattern: %w", err))
		}
		if !ok {
			res.Reason = TargetMismatch
			return res
		}
	}

	if strings.TrimSpace(exp.ExcludeURLPattern) != "" {
		ok, err := patterns.Match(url, exp.ExcludeURLPattern)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, fmt.Errorf("exclude url pattern: %w", err))
		}
		if ok {
			res.Reason = Excluded
			return res
		}
	}

	res.InScope = true
	return res
}

func isSet(d *utils.Date) bool {
	return d != nil && d.IsSet()
}
