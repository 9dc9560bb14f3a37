package experiments

import (
	"github.com/tracklab/abtest-go/abengine/conditions"
	"github.com/tracklab/abtest-go/abengine/utils"
)

// DefaultSessionDuration is used when an experiment does not set a positive
// session duration. Minutes.
const DefaultSessionDuration = 30

// Variant is one creative of an experiment.
type Variant struct {
	Name string `json:"name" yaml:"name"`
	// Distribution is the relative weight, conventionally a percentage.
	Distribution float64 `json:"distribution" yaml:"distribution"`
	IsOriginal   bool    `json:"isOriginal" yaml:"isOriginal"`
	CSS          string  `json:"css" yaml:"css"`
	JavaScript   string  `json:"javascript" yaml:"javascript"`
}

// Weight is the distribution clamped at zero.
func (v *Variant) Weight() float64 {
	if v.Distribution < 0 {
		return 0
	}
	return v.Distribution
}

type Experiment struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ProjectID string `json:"projectId" yaml:"projectId"`
	Active    bool   `json:"active" yaml:"active"`

	TargetURLPattern  string `json:"targetUrlPattern" yaml:"targetUrlPattern"`
	ExcludeURLPattern string `json:"excludeUrlPattern" yaml:"excludeUrlPattern"`

	StartDate *utils.Date `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	EndDate   *utils.Date `json:"endDate,omitempty" yaml:"endDate,omitempty"`

	// SessionDuration is handed to the tracker untouched. Minutes.
	SessionDuration int `json:"sessionDuration" yaml:"sessionDuration"`

	Conditions *conditions.Conditions `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Variants   []Variant              `json:"creatives" yaml:"creatives"`

	CreatedAt utils.Date `json:"createdAt" yaml:"createdAt"`
}

// SessionDurationMinutes returns SessionDuration, or DefaultSessionDuration
// when it is not positive.
func (e *Experiment) SessionDurationMinutes() int {
	if e.SessionDuration <= 0 {
		return DefaultSessionDuration
	}
	return e.SessionDuration
}
