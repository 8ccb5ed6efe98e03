package yml

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type (
	Node yaml.Node
)

// Lookup returns the value node of a mapping key or nil.
func (n *Node) Lookup(name string) *Node {
	node := n.document()
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return (*Node)(node.Content[i+1])
		}
	}
	return nil
}

func (n *Node) Items(callback func(index int, node *Node) error) error {
	node := n.document()
	for i := 0; i < len(node.Content); i++ {
		if err := callback(i, (*Node)(node.Content[i])); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) Pairs(callback func(key string, node *Node) error) error {
	node := n.document()
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := callback(node.Content[i].Value, (*Node)(node.Content[i+1])); err != nil {
			return err
		}
	}
	return nil
}

// Interface converts the node into JSON compatible values:
// map[string]interface{}, []interface{}, string, bool, int, float64 or nil.
func (n *Node) Interface() interface{} {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return (*Node)(n.Content[0]).Interface()
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil
		}
		return (*Node)(n.Alias).Interface()
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!str", "!!binary", "!!timestamp":
			return n.Value
		case "!!bool":
			return strings.EqualFold(n.Value, "true")
		case "!!null":
			return nil
		case "!!float":
			return parseFloat(n.Value)
		case "!!int":
			return parseInt(n.Value)
		default:
			return n.Value
		}
	case yaml.MappingNode:
		var aMap = make(map[string]interface{})
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			value := (*Node)(n.Content[i+1])
			if key.Tag == "!!merge" {
				if merged, ok := value.Interface().(map[string]interface{}); ok {
					for k, v := range merged {
						if _, exists := aMap[k]; !exists {
							aMap[k] = v
						}
					}
				}
				continue
			}
			aMap[key.Value] = value.Interface()
		}
		return aMap
	case yaml.SequenceNode:
		var aSlice = make([]interface{}, 0, len(n.Content))
		for i := 0; i < len(n.Content); i++ {
			aSlice = append(aSlice, (*Node)(n.Content[i]).Interface())
		}
		return aSlice
	}
	return nil
}

func (n *Node) document() *Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return (*Node)(n.Content[0])
	}
	return n
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(value string) interface{} {
	i, err := strconv.ParseInt(strings.ReplaceAll(value, "_", ""), 0, 64)
	if err != nil {
		return parseFloat(value)
	}
	return int(i)
}
