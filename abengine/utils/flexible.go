package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlexibleString is a type that can unmarshal from either string or number JSON values.
type FlexibleString string

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleString.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		*f = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = FlexibleString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexibleString(num.String())
		return nil
	}

	return fmt.Errorf("unable to unmarshal FlexibleString: invalid format")
}

// UnmarshalYAML accepts any scalar; null becomes the empty string.
func (f *FlexibleString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = FlexibleString(node.Value)
	return nil
}
