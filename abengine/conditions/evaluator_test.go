package conditions_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracklab/abtest-go/abengine/conditions"
	"github.com/tracklab/abtest-go/abengine/patterns"
	"github.com/tracklab/abtest-go/abengine/utils"
	"github.com/tracklab/abtest-go/abengine/visitors"
)

func desktopVisitor() *visitors.Visitor {
	return &visitors.Visitor{
		URL:        "https://example.com/checkout",
		Device:     visitors.DevicePC,
		Browser:    "Chrome",
		OS:         "Windows",
		Language:   "ja",
		VisitCount: 3,
		Referrer:   "https://www.google.com/search?q=shoes",
	}
}

func TestEvaluateRule(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		rule     conditions.Rule
		value    string
		expected bool
	}{
		{"exact match", conditions.Rule{Value: "Chrome", Operator: conditions.Exact}, "Chrome", true},
		{"exact mismatch", conditions.Rule{Value: "Chrome", Operator: conditions.Exact}, "Chrome Mobile", false},
		{"empty operator is exact", conditions.Rule{Value: "Chrome"}, "Chrome", true},
		{"contains", conditions.Rule{Value: "Mobile", Operator: conditions.Contains}, "Chrome Mobile", true},
		{"contains miss", conditions.Rule{Value: "Mobile", Operator: conditions.Contains}, "Chrome", false},
		{"startsWith", conditions.Rule{Value: "Chr", Operator: conditions.StartsWith}, "Chrome", true},
		{"startsWith miss", conditions.Rule{Value: "hrome", Operator: conditions.StartsWith}, "Chrome", false},
		{"endsWith", conditions.Rule{Value: "ome", Operator: conditions.EndsWith}, "Chrome", true},
		{"endsWith miss", conditions.Rule{Value: "Chr", Operator: conditions.EndsWith}, "Chrome", false},
		{"regex", conditions.Rule{Value: "^(Chrome|Edge)$", Operator: conditions.Regex}, "Edge", true},
		{"regex miss", conditions.Rule{Value: "^(Chrome|Edge)$", Operator: conditions.Regex}, "Firefox", false},
		{"notRegex", conditions.Rule{Value: "^Chrome", Operator: conditions.NotRegex}, "Firefox", true},
		{"notRegex miss", conditions.Rule{Value: "^Chrome", Operator: conditions.NotRegex}, "Chrome", false},
		{"oneOf", conditions.Rule{Value: "x", Operator: conditions.OneOf, Values: []string{"Safari", "Chrome"}}, "Chrome", true},
		{"oneOf miss", conditions.Rule{Value: "x", Operator: conditions.OneOf, Values: []string{"Safari"}}, "Chrome", false},
		{"oneOf absent values", conditions.Rule{Value: "Chrome", Operator: conditions.OneOf}, "Chrome", false},
		{"notOneOf", conditions.Rule{Value: "x", Operator: conditions.NotOneOf, Values: []string{"Safari"}}, "Chrome", true},
		{"notOneOf miss", conditions.Rule{Value: "x", Operator: conditions.NotOneOf, Values: []string{"Chrome"}}, "Chrome", false},
		{"notOneOf absent values", conditions.Rule{Value: "x", Operator: conditions.NotOneOf}, "Chrome", true},
		{"notContains", conditions.Rule{Value: "Mobile", Operator: conditions.NotContains}, "Chrome", true},
		{"notContains miss", conditions.Rule{Value: "Mobile", Operator: conditions.NotContains}, "Chrome Mobile", false},
		{"notStartsWith", conditions.Rule{Value: "Fire", Operator: conditions.NotStartsWith}, "Chrome", true},
		{"notStartsWith miss", conditions.Rule{Value: "Chr", Operator: conditions.NotStartsWith}, "Chrome", false},
		{"notEndsWith", conditions.Rule{Value: "fox", Operator: conditions.NotEndsWith}, "Chrome", true},
		{"notEndsWith miss", conditions.Rule{Value: "ome", Operator: conditions.NotEndsWith}, "Chrome", false},
		{"unrecognized operator", conditions.Rule{Value: "Chrome", Operator: "equalsIgnoreCase"}, "Chrome", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, _ := conditions.EvaluateRule(&c.rule, c.value)
			assert.Equal(t, c.expected, ok)
		})
	}
}

func TestInvalidRegexAsymmetry(t *testing.T) {
	t.Parallel()
	const invalid = "([a-z"

	regexRule := conditions.Rule{Value: invalid, Operator: conditions.Regex}
	ok, err := conditions.EvaluateRule(&regexRule, "anything")
	assert.False(t, ok, "regex must fail closed")
	var patternErr *patterns.PatternError
	assert.True(t, errors.As(err, &patternErr))

	notRegexRule := conditions.Rule{Value: invalid, Operator: conditions.NotRegex}
	ok, err = conditions.EvaluateRule(&notRegexRule, "anything")
	assert.True(t, ok, "notRegex must fail open")
	assert.Error(t, err)
}

func TestOperatorsAreValid(t *testing.T) {
	for _, op := range conditions.Operators {
		assert.True(t, op.IsValid(), op)
	}
	assert.False(t, conditions.Operator("").IsValid())
	assert.False(t, conditions.Operator("EQUAL").IsValid())
	assert.True(t, conditions.OneOf.UsesValues())
	assert.False(t, conditions.Regex.UsesValues())
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		conditions *conditions.Conditions
		matched    bool
		failedOn   string
	}{
		{
			name:       "nil conditions match",
			conditions: nil,
			matched:    true,
		},
		{
			name:       "empty conditions match",
			conditions: &conditions.Conditions{},
			matched:    true,
		},
		{
			name: "single device rule",
			conditions: &conditions.Conditions{
				Device: conditions.Group{{Value: visitors.DevicePC, Operator: conditions.Exact}},
			},
			matched: true,
		},
		{
			name: "rules inside a group are alternatives",
			conditions: &conditions.Conditions{
				Device: conditions.Group{
					{Value: visitors.DeviceSP, Operator: conditions.Exact},
					{Value: visitors.DevicePC, Operator: conditions.Exact},
				},
			},
			matched: true,
		},
		{
			name: "no alternative matches",
			conditions: &conditions.Conditions{
				Device: conditions.Group{
					{Value: visitors.DeviceSP, Operator: conditions.Exact},
					{Value: visitors.DeviceTablet, Operator: conditions.Exact},
				},
			},
			matched:  false,
			failedOn: "device",
		},
		{
			name: "groups are combined with and",
			conditions: &conditions.Conditions{
				Device:  conditions.Group{{Value: visitors.DevicePC}},
				Browser: conditions.Group{{Value: "Safari"}},
			},
			matched:  false,
			failedOn: "browser",
		},
		{
			name: "all four groups pass",
			conditions: &conditions.Conditions{
				Device:   conditions.Group{{Value: visitors.DevicePC}},
				Browser:  conditions.Group{{Value: "Chrom", Operator: conditions.StartsWith}},
				OS:       conditions.Group{{Value: "Mac OS X", Operator: conditions.NotOneOf, Values: []string{"Mac OS X"}}},
				Language: conditions.Group{{Value: "x", Operator: conditions.OneOf, Values: []string{"ja", "en"}}},
			},
			matched: true,
		},
		{
			name: "value-less rules leave the group unconstrained",
			conditions: &conditions.Conditions{
				Device: conditions.Group{{Value: ""}, {Value: "   ", Operator: conditions.Exact}},
			},
			matched: true,
		},
		{
			name: "value-less rules are dropped before or",
			conditions: &conditions.Conditions{
				Device: conditions.Group{{Value: ""}, {Value: visitors.DeviceSP}},
			},
			matched:  false,
			failedOn: "device",
		},
		{
			name: "visit count reached",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{VisitCount: "3"}},
			},
			matched: true,
		},
		{
			name: "visit count not reached",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{VisitCount: "4"}},
			},
			matched:  false,
			failedOn: conditions.FailedVisitCount,
		},
		{
			name: "non numeric visit count is unconstrained",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{VisitCount: "many"}},
			},
			matched: true,
		},
		{
			name: "negative visit count is unconstrained",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{VisitCount: "-10"}},
			},
			matched: true,
		},
		{
			name: "referrer matches",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{Referrer: "google.com"}},
			},
			matched: true,
		},
		{
			name: "referrer regex mismatch",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{{Referrer: "/bing\\.com/i"}},
			},
			matched:  false,
			failedOn: conditions.FailedReferrer,
		},
		{
			name: "every other entry must hold",
			conditions: &conditions.Conditions{
				Other: []conditions.OtherCondition{
					{VisitCount: "1", Referrer: "google"},
					{VisitCount: "0", Referrer: "yahoo"},
				},
			},
			matched:  false,
			failedOn: conditions.FailedReferrer,
		},
		{
			name: "attribute groups are checked before other",
			conditions: &conditions.Conditions{
				Language: conditions.Group{{Value: "en"}},
				Other:    []conditions.OtherCondition{{VisitCount: "99"}},
			},
			matched:  false,
			failedOn: "language",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev := conditions.Evaluate(c.conditions, desktopVisitor())
			assert.Equal(t, c.matched, ev.Matched)
			assert.Equal(t, c.failedOn, ev.FailedOn)
		})
	}
}

func TestEvaluateIgnoresUnconstrainedAttribute(t *testing.T) {
	t.Parallel()

	conds := &conditions.Conditions{
		Device:  conditions.Group{{Value: ""}, {Value: " "}},
		Browser: conditions.Group{{Value: "Chrome"}},
	}
	baseline := conditions.Evaluate(conds, desktopVisitor()).Matched

	for _, device := range []string{visitors.DevicePC, visitors.DeviceSP, visitors.DeviceTablet, visitors.DeviceOther, ""} {
		v := desktopVisitor()
		v.Device = device
		assert.Equal(t, baseline, conditions.Evaluate(conds, v).Matched, device)
	}
}

func TestEvaluateCollectsDiagnostics(t *testing.T) {
	t.Parallel()

	conds := &conditions.Conditions{
		Browser: conditions.Group{
			{Value: "(", Operator: conditions.Regex},
			{Value: "Chrome"},
		},
		Other: []conditions.OtherCondition{{Referrer: "/(/"}},
	}
	ev := conditions.Evaluate(conds, desktopVisitor())

	assert.False(t, ev.Matched)
	assert.Equal(t, conditions.FailedReferrer, ev.FailedOn)
	assert.Len(t, ev.Diagnostics, 2)
}

func TestRequiredVisits(t *testing.T) {
	cases := map[string]int{
		"":      0,
		"0":     0,
		"5":     5,
		" 7 ":   7,
		"+2":    2,
		"12abc": 12,
		"abc":   0,
		"-3":    0,
		"1e3":   1,

		"99999999999":          math.MaxInt32,
		"2147483648":           math.MaxInt32,
		"99999999999999999999": math.MaxInt32,
	}
	for input, expected := range cases {
		other := conditions.OtherCondition{VisitCount: utils.FlexibleString(input)}
		assert.Equal(t, expected, other.RequiredVisits(), input)
	}
}

func TestConditionsDecode(t *testing.T) {
	raw := `{
		"device": [{"value": "SP", "condition": "exact"}],
		"browser": [{"value": "", "condition": "exact"}],
		"language": [{"value": "-", "condition": "oneOf", "values": ["ja", "en"]}],
		"other": [{"visitCount": 2, "referrer": ""}, {"visitCount": "3", "referrer": "google"}]
	}`

	var conds conditions.Conditions
	require.NoError(t, json.Unmarshal([]byte(raw), &conds))

	assert.Equal(t, conditions.Exact, conds.Device[0].Operator)
	assert.Empty(t, conds.Browser.Effective())
	assert.Equal(t, []string{"ja", "en"}, conds.Language[0].Values)
	assert.Equal(t, 2, conds.Other[0].RequiredVisits())
	assert.Equal(t, 3, conds.Other[1].RequiredVisits())
}

func TestConditionsProblems(t *testing.T) {
	conds := conditions.Conditions{
		Device: conditions.Group{
			{Value: "SP"},
			{Value: "PC", Operator: "equals"},
		},
		Browser: conditions.Group{
			{Value: "Chrome", Operator: conditions.Contains, Values: []string{"Chrome"}},
		},
		Language: conditions.Group{
			{Value: "-", Operator: conditions.OneOf},
			{Value: "-", Operator: conditions.NotOneOf, Values: []string{"ja"}},
		},
	}

	problems := conds.Problems()
	require.Len(t, problems, 3)
	assert.ErrorContains(t, problems[0], `device rule 1: unrecognized operator "equals"`)
	assert.ErrorContains(t, problems[1], "browser rule 0: values are ignored by contains")
	assert.ErrorContains(t, problems[2], "language rule 0: oneOf without values")

	assert.Empty(t, (&conditions.Conditions{}).Problems())
}
