package abtest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blang/semver/v4"
	"golang.org/x/exp/slices"

	"github.com/tracklab/abtest-go/abengine/experiments"
	"github.com/tracklab/abtest-go/abengine/patterns"
	"github.com/tracklab/abtest-go/abengine/utils"
)

// SupportedSchemaVersions is the range of snapshot schema versions this
// client understands.
const SupportedSchemaVersions = ">=1.0.0 <2.0.0"

var supportedSchemaRange = semver.MustParseRange(SupportedSchemaVersions)

// Project owns a site URL and the experiments that run on it.
type Project struct {
	ID          string                    `json:"id" yaml:"id"`
	Name        string                    `json:"name" yaml:"name"`
	URL         string                    `json:"url" yaml:"url"`
	APIKey      string                    `json:"apiKey" yaml:"apiKey"`
	Experiments []*experiments.Experiment `json:"experiments" yaml:"experiments"`
}

// Snapshot is a read-only copy of every project and experiment, as served
// by the API or stored as a file.
type Snapshot struct {
	SchemaVersion string     `json:"schemaVersion" yaml:"schemaVersion"`
	UpdatedAt     utils.Date `json:"updatedAt" yaml:"updatedAt"`
	Projects      []*Project `json:"projects" yaml:"projects"`
}

// ParseSnapshot decodes and validates a JSON snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the schema version and that project ids are present and unique.
func (s *Snapshot) Validate() error {
	version, err := semver.ParseTolerant(s.SchemaVersion)
	if err != nil {
		return fmt.Errorf("snapshot schema version %q: %w", s.SchemaVersion, err)
	}
	if !supportedSchemaRange(version) {
		return fmt.Errorf("snapshot schema version %s is not supported (want %s)", version, SupportedSchemaVersions)
	}

	seen := make(map[string]bool, len(s.Projects))
	var errs []error
	for i, p := range s.Projects {
		switch {
		case p == nil:
			errs = append(errs, fmt.Errorf("project %d is null", i))
		case p.ID == "":
			errs = append(errs, fmt.Errorf("project %d has no id", i))
		case seen[p.ID]:
			errs = append(errs, fmt.Errorf("duplicate project id %q", p.ID))
		default:
			seen[p.ID] = true
		}
	}
	return errors.Join(errs...)
}

// Problems lists targeting rules that are accepted but cannot work as
// written, such as unknown operators. Unlike Validate, these do not make the
// snapshot unusable.
func (s *Snapshot) Problems() []error {
	var errs []error
	for _, p := range s.Projects {
		if p == nil {
			continue
		}
		for _, exp := range p.Experiments {
			if exp == nil || exp.Conditions == nil {
				continue
			}
			for _, err := range exp.Conditions.Problems() {
				errs = append(errs, fmt.Errorf("project %s experiment %s: %w", p.ID, exp.ID, err))
			}
		}
	}
	return errs
}

// Project returns the project with the given id.
func (s *Snapshot) Project(id string) (*Project, bool) {
	i := slices.IndexFunc(s.Projects, func(p *Project) bool {
		return p != nil && p.ID == id
	})
	if i < 0 {
		return nil, false
	}
	return s.Projects[i], true
}

// ProjectForURL returns the first project whose URL and url share a
// normalized prefix in either direction.
func (s *Snapshot) ProjectForURL(url string) (*Project, bool) {
	for _, p := range s.Projects {
		if p != nil && p.URL != "" && patterns.SameScope(url, p.URL) {
			return p, true
		}
	}
	return nil, false
}

// Owns reports whether url lies under the project URL once both are normalized.
func (p *Project) Owns(url string) bool {
	return patterns.WithinScope(url, p.URL)
}

// ActiveExperiments returns the project's active experiments, most recently
// created first. Experiments created at the same time keep their order.
func (p *Project) ActiveExperiments() []*experiments.Experiment {
	active := make([]*experiments.Experiment, 0, len(p.Experiments))
	for _, exp := range p.Experiments {
		if exp != nil && exp.Active {
			active = append(active, exp)
		}
	}
	slices.SortStableFunc(active, func(a, b *experiments.Experiment) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
	return active
}
