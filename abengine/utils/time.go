package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/itlightning/dateparse"
	"gopkg.in/yaml.v3"
)

const iso8601 = "2006-01-02T15:04:05.999999Z07:00"

// Date is an optional point in time decoded from the loosely formatted date
// strings experiment editors produce. The zero value means "unset".
type Date struct {
	time.Time
}

// NewDate wraps t.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// IsSet reports whether the date carries a value.
func (d Date) IsSet() bool {
	return !d.IsZero()
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Date) UnmarshalText(text []byte) (err error) {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	d.Time, err = dateparse.ParseIn(s, time.UTC)
	return
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: date must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		d.Time = time.Time{}
		return nil
	}
	return d.UnmarshalText([]byte(node.Value))
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.IsSet() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Time.UTC().Format(iso8601) + `"`), nil
}
