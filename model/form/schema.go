package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/viant/approvo/errs"
)

// Schema is an ordered list of fields.
type Schema []Field

// Lookup returns a field by key.
func (s Schema) Lookup(key string) Field {
	for _, field := range s {
		if field != nil && field.Header().Key == key {
			return field
		}
	}
	return nil
}

// ApplyDefaults fills unset field attributes with their defaults.
func (s Schema) ApplyDefaults() {
	for _, field := range s {
		if d, ok := field.(defaulter); ok {
			d.applyDefaults()
		}
	}
}

// Validate checks the schema declaration.
func (s Schema) Validate() error {
	issues := errs.NewValidationError()
	s.check("form", issues)
	return issues.OrNil()
}

func (s Schema) check(path string, issues *errs.ValidationError) {
	seen := map[string]bool{}
	for i, field := range s {
		if field == nil {
			issues.Add(fmt.Sprintf("%s[%d]", path, i), "field is undefined")
			continue
		}
		key := field.Header().Key
		if key == "" {
			issues.Add(fmt.Sprintf("%s[%d].key", path, i), "key is required")
			continue
		}
		if seen[key] {
			issues.Add(path+"."+key, "duplicate key")
			continue
		}
		seen[key] = true
		field.Check(path+"."+key, issues)
	}
}

// ValidateData validates submitted form data. Every problem is reported,
// keyed by the offending field.
func (s Schema) ValidateData(data map[string]interface{}) error {
	issues := errs.NewValidationError()
	s.validate("", data, issues)
	return issues.OrNil()
}

func (s Schema) validate(prefix string, data map[string]interface{}, issues *errs.ValidationError) {
	known := make(map[string]bool, len(s))
	for _, field := range s {
		if field == nil {
			continue
		}
		header := field.Header()
		known[header.Key] = true
		key := prefix + header.Key
		value, ok := data[header.Key]
		if !ok || isEmpty(value) {
			if header.Required {
				issues.Add(key, "is required")
			}
			continue
		}
		field.Validate(key, value, issues)
	}
	var unknown []string
	for key := range data {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		issues.Add(prefix+key, "is not a declared field")
	}
}

// MarshalJSON encodes every field in its {"type": ...} envelope.
func (s Schema) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBufferString("[")
	for i, field := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalField(field)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes field envelopes.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := make(Schema, 0, len(raw))
	for i, item := range raw {
		field, err := UnmarshalField(item)
		if err != nil {
			return fmt.Errorf("form field %d: %w", i, err)
		}
		fields = append(fields, field)
	}
	*s = fields
	return nil
}

// MarshalField encodes a single field with its kind tag.
func MarshalField(field Field) ([]byte, error) {
	if field == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(field)
	if err != nil {
		return nil, err
	}
	envelope := map[string]json.RawMessage{}
	if err = json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	envelope["type"] = json.RawMessage(strconv.Quote(string(field.Kind())))
	return json.Marshal(envelope)
}

// UnmarshalField decodes a single {"type": ...} envelope.
func UnmarshalField(data []byte) (Field, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	if tag.Type == "" {
		return nil, fmt.Errorf("field type is required")
	}
	field := New(tag.Type)
	if field == nil {
		return nil, fmt.Errorf("unsupported field type %q", tag.Type)
	}
	if err := json.Unmarshal(data, field); err != nil {
		return nil, fmt.Errorf("invalid %s field: %w", tag.Type, err)
	}
	return field, nil
}

// Clone returns a deep copy through the JSON codec.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return s
	}
	var ret Schema
	if err = json.Unmarshal(data, &ret); err != nil {
		return s
	}
	return ret
}

func isEmpty(value interface{}) bool {
	switch actual := value.(type) {
	case nil:
		return true
	case string:
		return actual == ""
	case []interface{}:
		return len(actual) == 0
	case []string:
		return len(actual) == 0
	case []map[string]interface{}:
		return len(actual) == 0
	case map[string]interface{}:
		return len(actual) == 0
	}
	return false
}

func asNumber(value interface{}) (float64, bool) {
	switch actual := value.(type) {
	case float64:
		return actual, true
	case float32:
		return float64(actual), true
	case int:
		return float64(actual), true
	case int64:
		return float64(actual), true
	case json.Number:
		f, err := actual.Float64()
		return f, err == nil
	}
	return 0, false
}

func asStrings(value interface{}) ([]string, bool) {
	switch actual := value.(type) {
	case []string:
		return actual, true
	case []interface{}:
		ret := make([]string, 0, len(actual))
		for _, item := range actual {
			text, ok := item.(string)
			if !ok {
				return nil, false
			}
			ret = append(ret, text)
		}
		return ret, true
	}
	return nil, false
}
