package conditions

import (
	"fmt"
	"math"
	"strings"

	"github.com/tracklab/abtest-go/abengine/utils"
	"github.com/tracklab/abtest-go/abengine/visitors"
)

// Rule is a single alternative inside a Group.
type Rule struct {
	Value string `json:"value" yaml:"value"`
	// Operator is stored under "condition" in experiment documents. An empty
	// operator means Exact.
	Operator Operator `json:"condition,omitempty" yaml:"condition,omitempty"`
	// Values is only read by the set operators.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// EffectiveOperator resolves the empty operator to Exact.
func (r *Rule) EffectiveOperator() Operator {
	if r.Operator == "" {
		return Exact
	}
	return r.Operator
}

func (r *Rule) hasValue() bool {
	return strings.TrimSpace(r.Value) != ""
}

// Group is the ordered, OR-combined set of rules for one attribute.
type Group []Rule

// Effective returns the rules that carry a value. A group without any is
// unconstrained.
func (g Group) Effective() Group {
	var out Group
	for _, r := range g {
		if r.hasValue() {
			out = append(out, r)
		}
	}
	return out
}

// OtherCondition constrains the visit count and the referrer.
type OtherCondition struct {
	// VisitCount is the minimum number of visits, encoded as a string. Blank,
	// "0", negative or non-numeric values leave visits unconstrained.
	VisitCount utils.FlexibleString `json:"visitCount" yaml:"visitCount"`
	// Referrer is a pattern the visitor's referrer must match.
	Referrer string `json:"referrer" yaml:"referrer"`
}

// RequiredVisits parses VisitCount the way lenient integer parsing does:
// leading digits are used and anything unparsable counts as zero. Values too
// large to reach are clamped to math.MaxInt32.
func (o *OtherCondition) RequiredVisits() int {
	s := strings.TrimSpace(string(o.VisitCount))
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	n := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		if n <= math.MaxInt32/10 {
			n = min(n*10+int(s[end]-'0'), math.MaxInt32)
		} else {
			n = math.MaxInt32
		}
		end++
	}
	if end == digitsStart || s[0] == '-' {
		return 0
	}
	return n
}

// Conditions is the full targeting definition of an experiment.
type Conditions struct {
	Device   Group            `json:"device,omitempty" yaml:"device,omitempty"`
	Browser  Group            `json:"browser,omitempty" yaml:"browser,omitempty"`
	OS       Group            `json:"os,omitempty" yaml:"os,omitempty"`
	Language Group            `json:"language,omitempty" yaml:"language,omitempty"`
	Other    []OtherCondition `json:"other,omitempty" yaml:"other,omitempty"`
}

// Group returns the rule group for attribute.
func (c *Conditions) Group(attribute visitors.Attribute) Group {
	switch attribute {
	case visitors.Device:
		return c.Device
	case visitors.Browser:
		return c.Browser
	case visitors.OS:
		return c.OS
	case visitors.Language:
		return c.Language
	}
	return nil
}

// Problems lists rules that can never behave as written: unknown operators,
// set operators without values and values given to other operators. They do
// not stop evaluation.
func (c *Conditions) Problems() []error {
	var errs []error
	for _, attribute := range visitors.Attributes {
		for i, r := range c.Group(attribute) {
			op := r.EffectiveOperator()
			switch {
			case !op.IsValid():
				errs = append(errs, fmt.Errorf("%s rule %d: unrecognized operator %q", attribute, i, op))
			case op.UsesValues() && len(r.Values) == 0 && r.hasValue():
				errs = append(errs, fmt.Errorf("%s rule %d: %s without values never matches as intended", attribute, i, op))
			case !op.UsesValues() && len(r.Values) > 0:
				errs = append(errs, fmt.Errorf("%s rule %d: values are ignored by %s", attribute, i, op))
			}
		}
	}
	return errs
}
