package conditions

// Operator is the comparison a Rule applies to a visitor attribute.
type Operator string

const (
	Exact         Operator = "exact"
	Contains      Operator = "contains"
	StartsWith    Operator = "startsWith"
	EndsWith      Operator = "endsWith"
	Regex         Operator = "regex"
	NotRegex      Operator = "notRegex"
	OneOf         Operator = "oneOf"
	NotOneOf      Operator = "notOneOf"
	NotContains   Operator = "notContains"
	NotStartsWith Operator = "notStartsWith"
	NotEndsWith   Operator = "notEndsWith"
)

// Operators lists every recognized operator.
var Operators = []Operator{
	Exact, Contains, StartsWith, EndsWith, Regex, NotRegex,
	OneOf, NotOneOf, NotContains, NotStartsWith, NotEndsWith,
}

// IsValid reports whether o is one of the recognized operators.
func (o Operator) IsValid() bool {
	switch o {
	case Exact, Contains, StartsWith, EndsWith, Regex, NotRegex,
		OneOf, NotOneOf, NotContains, NotStartsWith, NotEndsWith:
		return true
	}
	return false
}

// UsesValues reports whether the operator reads Rule.Values instead of Rule.Value.
func (o Operator) UsesValues() bool {
	return o == OneOf || o == NotOneOf
}
