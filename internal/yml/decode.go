// Package yml bridges YAML authoring documents onto the JSON codecs of the
// model types, so tagged unions are decoded by the same envelope logic
// regardless of the source format.
package yml

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes YAML data into a Node.
func Parse(data []byte) (*Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return (*Node)(&root), nil
}

// ToJSON converts a YAML document into its JSON equivalent.
func ToJSON(data []byte) ([]byte, error) {
	node, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node.Interface())
}

// Unmarshal decodes YAML data into target through its JSON representation.
func Unmarshal(data []byte, target interface{}) error {
	encoded, err := ToJSON(data)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(encoded, target); err != nil {
		return fmt.Errorf("failed to decode %T: %w", target, err)
	}
	return nil
}

// Marshal encodes source as YAML using its JSON representation.
func Marshal(source interface{}) ([]byte, error) {
	encoded, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err = json.Unmarshal(encoded, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}
