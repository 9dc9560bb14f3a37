package conditions

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/tracklab/abtest-go/abengine/patterns"
	"github.com/tracklab/abtest-go/abengine/utils"
	"github.com/tracklab/abtest-go/abengine/visitors"
)

// Failure reasons reported when the visit or referrer constraint rejects a visitor.
const (
	FailedVisitCount = "visitCount"
	FailedReferrer   = "referrer"
)

// Evaluation is the outcome of evaluating Conditions for one visitor.
type Evaluation struct {
	Matched bool
	// FailedOn names the attribute, or FailedVisitCount / FailedReferrer,
	// that rejected the visitor. Empty when Matched.
	FailedOn string
	// Diagnostics holds malformed patterns met along the way.
	Diagnostics []error
}

// Evaluate checks visitor against conds. Each attribute group must be
// satisfied by at least one of its effective rules, then every other
// condition must hold. Nil conditions match every visitor.
func Evaluate(conds *Conditions, visitor *visitors.Visitor) Evaluation {
	var ev Evaluation
	if conds == nil {
		ev.Matched = true
		return ev
	}

	for _, attribute := range visitors.Attributes {
		group := conds.Group(attribute).Effective()
		if len(group) == 0 {
			continue
		}
		value := visitor.Value(attribute)
		outcomes := make([]bool, len(group))
		for i := range group {
			ok, err := EvaluateRule(&group[i], value)
			if err != nil {
				ev.Diagnostics = append(ev.Diagnostics, fmt.Errorf("%s rule: %w", attribute, err))
			}
			outcomes[i] = ok
		}
		if !utils.Any(outcomes) {
			ev.FailedOn = string(attribute)
			return ev
		}
	}

	for i := range conds.Other {
		other := &conds.Other[i]
		if visitor.VisitCount < other.RequiredVisits() {
			ev.FailedOn = FailedVisitCount
			return ev
		}
		if strings.TrimSpace(other.Referrer) == "" {
			continue
		}
		ok, err := patterns.Match(visitor.Referrer, other.Referrer)
		if err != nil {
			ev.Diagnostics = append(ev.Diagnostics, fmt.Errorf("referrer rule: %w", err))
		}
		if !ok {
			ev.FailedOn = FailedReferrer
			return ev
		}
	}

	ev.Matched = true
	return ev
}

// EvaluateRule applies a single rule to value. The returned error describes an
// invalid regular expression; the boolean already reflects how the operator
// treats that case.
func EvaluateRule(rule *Rule, value string) (bool, error) {
	operand := rule.Value
	switch op := rule.EffectiveOperator(); op {
	case Exact:
		return value == operand, nil
	case Contains:
		return strings.Contains(value, operand), nil
	case StartsWith:
		return strings.HasPrefix(value, operand), nil
	case EndsWith:
		return strings.HasSuffix(value, operand), nil
	case Regex:
		re, err := compileRule(operand)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	case NotRegex:
		re, err := compileRule(operand)
		if err != nil {
			return true, err
		}
		return !re.MatchString(value), nil
	case OneOf:
		return slices.Contains(rule.Values, value), nil
	case NotOneOf:
		return !slices.Contains(rule.Values, value), nil
	case NotContains:
		return !strings.Contains(value, operand), nil
	case NotStartsWith:
		return !strings.HasPrefix(value, operand), nil
	case NotEndsWith:
		return !strings.HasSuffix(value, operand), nil
	default:
		return false, fmt.Errorf("unrecognized operator %q", op)
	}
}

// compileRule compiles a rule operand. An invalid operand makes regex fail
// closed and notRegex fail open.
func compileRule(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &patterns.PatternError{Pattern: expr, Err: err}
	}
	return re, nil
}
