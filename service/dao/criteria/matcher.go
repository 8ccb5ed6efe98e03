package criteria

import (
	"github.com/viant/approvo/service/dao"
)

// Attributes exposes named string attributes of an entity for filtering.
type Attributes func(name string) []string

// Match reports whether attributes satisfy every parameter. A parameter
// matches when any of its values equals any attribute value; parameters
// naming attributes the entity does not expose are ignored.
func Match(attributes Attributes, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		actual := attributes(parameter.Name)
		if actual == nil {
			continue
		}
		if !matchAny(actual, values(parameter.Value)) {
			return false
		}
	}
	return true
}

// FilterByState matches the Status parameter against state.
func FilterByState(state string, parameters []*dao.Parameter) bool {
	return Match(func(name string) []string {
		if name == dao.ParamStatus {
			return []string{state}
		}
		return nil
	}, parameters)
}

func values(value interface{}) []string {
	switch actual := value.(type) {
	case string:
		return []string{actual}
	case []string:
		return actual
	}
	return nil
}

func matchAny(actual, expected []string) bool {
	for _, candidate := range expected {
		for _, value := range actual {
			if candidate == value {
				return true
			}
		}
	}
	return false
}
